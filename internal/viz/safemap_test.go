package viz

import (
	"strings"
	"testing"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
	"github.com/panos108/lyapunov-learning/internal/grid"
)

func TestSafeMapShape(t *testing.T) {
	g, err := grid.New([]grid.Axis{
		{Min: -1, Max: 1.05, Step: 0.5},
		{Min: -1, Max: 1.05, Step: 0.5},
	})
	if err != nil {
		t.Fatalf("grid failed: %v", err)
	}

	safe := make([]bool, g.Len())
	seed := make([]bool, g.Len())
	for i := 0; i < g.Len(); i++ {
		p := g.Point(i)
		safe[i] = p[0]*p[0]+p[1]*p[1] <= 0.5
		seed[i] = p[0] == 0 && p[1] == 0
	}
	samples := []dynamo.State{{0.5, 0.5}}

	out, err := SafeMap(g, safe, seed, samples, 80)
	if err != nil {
		t.Fatalf("SafeMap failed: %v", err)
	}

	rows := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(rows) != 5 {
		t.Errorf("rendered %d rows, want 5", len(rows))
	}
	if !strings.ContainsRune(out, cellSample) {
		t.Error("sample marker missing from map")
	}
	if !strings.ContainsRune(out, cellSeed) {
		t.Error("seed marker missing from map")
	}
	if !strings.ContainsRune(out, cellSafe) || !strings.ContainsRune(out, cellUnsafe) {
		t.Error("expected both safe and unsafe cells")
	}
}

func TestSafeMapRejectsNon2D(t *testing.T) {
	g, err := grid.New([]grid.Axis{{Min: -1, Max: 1, Step: 0.5}})
	if err != nil {
		t.Fatalf("grid failed: %v", err)
	}
	if _, err := SafeMap(g, make([]bool, g.Len()), nil, nil, 80); err == nil {
		t.Error("expected error for 1-D grid")
	}
}
