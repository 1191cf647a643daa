// Package storage keeps run directories on disk: run metadata, the scenario
// configuration, the metric history and periodic particle and grid
// snapshots.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/san-kum/mpmsim/internal/metrics"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = errors.New("storage: not found")

// Run statuses.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	historyFile  = "history.csv"
	perfFile     = "perf.csv"
	snapshotDir  = "snapshots"
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

func (s *Store) Dir() string { return s.baseDir }

// RunMetadata is the summary written to metadata.json.
type RunMetadata struct {
	ID         string             `json:"id"`
	Scenario   string             `json:"scenario"`
	Timestamp  time.Time          `json:"timestamp"`
	Status     string             `json:"status"`
	Error      string             `json:"error,omitempty"`
	Grid       [3]int             `json:"grid"`
	Cell       [3]float64         `json:"cell"`
	Kernel     string             `json:"kernel"`
	Dt         float64            `json:"dt"`
	Damping    float64            `json:"damping"`
	Workers    int                `json:"workers"`
	Particles  int                `json:"particles"`
	Boundaries int                `json:"boundary_nodes"`
	Steps      int                `json:"steps"`
	SaveEvery  int                `json:"save_every"`
	StepsTaken int                `json:"steps_taken"`
	Snapshots  int                `json:"snapshots"`
	Elapsed    float64            `json:"elapsed_seconds"`
	StepsPerS  float64            `json:"steps_per_second"`
	Metrics    map[string]float64 `json:"metrics"`
}

func (s *Store) runDir(id string) string { return filepath.Join(s.baseDir, id) }

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// List returns the metadata of every run, newest first. Directories
// without readable metadata are skipped.
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
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(runID), metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: run %q", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %q: %w", runID, err)
	}
	return &meta, nil
}

// ConfigPath returns the path of the scenario file of a run.
func (s *Store) ConfigPath(runID string) string {
	return filepath.Join(s.runDir(runID), configFile)
}

// LoadHistory reads the metric samples of a run.
func (s *Store) LoadHistory(runID string) ([]metrics.Sample, error) {
	f, err := os.Open(filepath.Join(s.runDir(runID), historyFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: history of run %q", ErrNotFound, runID)
		}
		return nil, err
	}
	defer f.Close()

	samples := []metrics.Sample{}
	if err := gocsv.UnmarshalFile(f, &samples); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return samples, nil
		}
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return samples, nil
}

// Snapshots returns the saved steps of a run in ascending order.
func (s *Store) Snapshots(runID string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(s.runDir(runID), snapshotDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []int{}, nil
		}
		return nil, err
	}
	steps := make([]int, 0, len(entries))
	for _, e := range entries {
		var step int
		if !strings.HasPrefix(e.Name(), "particles_") {
			continue
		}
		if _, err := fmt.Sscanf(e.Name(), "particles_%06d.csv", &step); err == nil {
			steps = append(steps, step)
		}
	}
	sort.Ints(steps)
	return steps, nil
}

// LoadParticles reads the particle snapshot of a run at step.
func (s *Store) LoadParticles(runID string, step int) ([]ParticleRow, error) {
	rows := []ParticleRow{}
	if err := readCSV(filepath.Join(s.runDir(runID), snapshotDir, particleFile(step)), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// LoadGrid reads the active-node snapshot of a run at step.
func (s *Store) LoadGrid(runID string, step int) ([]NodeRow, error) {
	rows := []NodeRow{}
	if err := readCSV(filepath.Join(s.runDir(runID), snapshotDir, gridFile(step)), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func readCSV(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return err
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil && !errors.Is(err, gocsv.ErrEmptyCSVFile) {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return nil
}
