// Package storage persists learning runs as directories under a base path:
// metadata.json for the run summary, safe.csv for the certified mask over
// the grid, history.csv for per-iteration progress, samples.csv for the
// states the learner queried.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/panos108/lyapunov-learning/internal/dynamo"
	"github.com/panos108/lyapunov-learning/internal/grid"
	"github.com/panos108/lyapunov-learning/internal/learner"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Preset       string    `json:"preset"`
	Beta         float64   `json:"beta"`
	Lipschitz    float64   `json:"lipschitz"`
	Budget       int       `json:"budget"`
	Iterations   int       `json:"iterations"`
	Level        float64   `json:"level"`
	SafeFraction float64   `json:"safe_fraction"`
	SampleCount  int       `json:"sample_count"`
	Converged    bool      `json:"converged"`
}

func (s *Store) Save(g *grid.Grid, v []float64, res *learner.Result, samples []dynamo.State, preset string, beta, lipschitz float64, budget int) (string, error) {
	runID := fmt.Sprintf("roa_%d", time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	safeCount := 0
	for _, ok := range res.Safe {
		if ok {
			safeCount++
		}
	}
	meta := RunMetadata{
		ID:           runID,
		Timestamp:    time.Now(),
		Preset:       preset,
		Beta:         beta,
		Lipschitz:    lipschitz,
		Budget:       budget,
		Iterations:   len(res.Iterations),
		Level:        res.Level,
		SafeFraction: float64(safeCount) / float64(g.Len()),
		SampleCount:  len(samples),
		Converged:    res.Converged,
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := s.writeSafe(filepath.Join(runDir, "safe.csv"), g, v, res.Safe); err != nil {
		return "", err
	}
	if err := s.writeHistory(filepath.Join(runDir, "history.csv"), g.Dim(), res.Iterations); err != nil {
		return "", err
	}
	if err := s.writeSamples(filepath.Join(runDir, "samples.csv"), g.Dim(), samples); err != nil {
		return "", err
	}

	return runID, nil
}

func writeJSON(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (s *Store) writeSafe(path string, g *grid.Grid, v []float64, safe []bool) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := make([]string, 0, g.Dim()+2)
	for d := 0; d < g.Dim(); d++ {
		header = append(header, fmt.Sprintf("z%d", d))
	}
	header = append(header, "v", "safe")
	if err := w.Write(header); err != nil {
		return err
	}

	for i := 0; i < g.Len(); i++ {
		row := make([]string, 0, len(header))
		for _, c := range g.Point(i) {
			row = append(row, strconv.FormatFloat(c, 'f', 6, 64))
		}
		row = append(row, strconv.FormatFloat(v[i], 'f', 6, 64))
		if safe[i] {
			row = append(row, "1")
		} else {
			row = append(row, "0")
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeHistory(path string, dim int, iterations []learner.Iteration) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"iteration", "level", "safe_count", "max_variance"}
	for d := 0; d < dim; d++ {
		header = append(header, fmt.Sprintf("q%d", d))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, it := range iterations {
		row := []string{
			strconv.Itoa(it.Index),
			strconv.FormatFloat(it.Level, 'f', 6, 64),
			strconv.Itoa(it.SafeCount),
			strconv.FormatFloat(it.MaxVariance, 'g', 8, 64),
		}
		for _, c := range it.QueryPoint {
			row = append(row, strconv.FormatFloat(c, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeSamples(path string, dim int, samples []dynamo.State) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := make([]string, dim)
	for d := range header {
		header[d] = fmt.Sprintf("z%d", d)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, x := range samples {
		row := make([]string, len(x))
		for i, c := range x {
			row[i] = strconv.FormatFloat(c, 'f', 6, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}

		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSafe reads back the certified mask: grid coordinates, V values and
// membership, row per grid point in grid order.
func (s *Store) LoadSafe(runID string) (points [][]float64, v []float64, safe []bool, err error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "safe.csv"))
	if err != nil {
		return nil, nil, nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) < 2 {
		return [][]float64{}, []float64{}, []bool{}, nil
	}

	dim := len(records[0]) - 2
	for _, rec := range records[1:] {
		if len(rec) != dim+2 {
			return nil, nil, nil, fmt.Errorf("storage: malformed row with %d fields, want %d", len(rec), dim+2)
		}
		p := make([]float64, dim)
		for d := 0; d < dim; d++ {
			if p[d], err = strconv.ParseFloat(rec[d], 64); err != nil {
				return nil, nil, nil, fmt.Errorf("storage: parsing coordinate: %w", err)
			}
		}
		val, err := strconv.ParseFloat(rec[dim], 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("storage: parsing V: %w", err)
		}
		points = append(points, p)
		v = append(v, val)
		safe = append(safe, rec[dim+1] == "1")
	}
	return points, v, safe, nil
}

// SafePath returns the location of the certified-mask CSV for export.
func (s *Store) SafePath(runID string) string {
	return filepath.Join(s.baseDir, runID, "safe.csv")
}
