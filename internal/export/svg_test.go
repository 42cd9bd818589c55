package export

import (
	"strings"
	"testing"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
	"github.com/panos108/lyapunov-learning/internal/grid"
)

func TestSafeSetSVG(t *testing.T) {
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

	out, err := SafeSetSVG(g, safe, seed, []dynamo.State{{0.5, 0}}, 8)
	if err != nil {
		t.Fatalf("SafeSetSVG failed: %v", err)
	}

	if !strings.HasPrefix(out, `<?xml`) || !strings.HasSuffix(out, "</svg>") {
		t.Error("output is not a complete SVG document")
	}
	if !strings.Contains(out, "#00cc66") {
		t.Error("safe cells missing")
	}
	if !strings.Contains(out, "#3399ff") {
		t.Error("seed cell missing")
	}
	if !strings.Contains(out, "<circle") {
		t.Error("sample marker missing")
	}
}

func TestSafeSetSVGRejectsNon2D(t *testing.T) {
	g, err := grid.New([]grid.Axis{{Min: -1, Max: 1, Step: 0.5}})
	if err != nil {
		t.Fatalf("grid failed: %v", err)
	}
	if _, err := SafeSetSVG(g, make([]bool, g.Len()), nil, nil, 8); err == nil {
		t.Error("expected error for 1-D grid")
	}
}
