package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/san-kum/mpmsim/internal/metrics"
	"github.com/san-kum/mpmsim/internal/mpm"
	"github.com/san-kum/mpmsim/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Run records one simulation into its directory. It implements
// mpm.Observer: every save point appends a history row and, unless
// disabled, writes a particle and a grid snapshot.
type Run struct {
	ID  string
	Dir string

	// Snapshots controls whether save points write snapshot files.
	Snapshots bool

	meta     RunMetadata
	recorder *metrics.Recorder
	history  *os.File
	perf     *os.File
	wroteH   bool
	wroteP   bool
	last     metrics.Sample
	start    time.Time
	log      *slog.Logger
}

// Create makes a new run directory and writes the scenario configuration
// (any YAML-marshalable value) to config.yaml.
func (s *Store) Create(scenario string, cfg any) (*Run, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	id := fmt.Sprintf("%s_%d", scenario, time.Now().UnixNano())
	dir := s.runDir(id)
	if err := os.MkdirAll(filepath.Join(dir, snapshotDir), 0755); err != nil {
		return nil, err
	}

	if cfg != nil {
		if err := writeYAML(filepath.Join(dir, configFile), cfg); err != nil {
			return nil, fmt.Errorf("writing %s: %w", configFile, err)
		}
	}

	history, err := os.Create(filepath.Join(dir, historyFile))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", historyFile, err)
	}
	perf, err := os.Create(filepath.Join(dir, perfFile))
	if err != nil {
		history.Close()
		return nil, fmt.Errorf("creating %s: %w", perfFile, err)
	}

	return &Run{
		ID:        id,
		Dir:       dir,
		Snapshots: true,
		meta: RunMetadata{
			ID:        id,
			Scenario:  scenario,
			Timestamp: time.Now(),
			Status:    StatusRunning,
			Metrics:   map[string]float64{},
		},
		recorder: metrics.NewRecorder(),
		history:  history,
		perf:     perf,
		log:      slog.Default(),
	}, nil
}

func (r *Run) SetLogger(l *slog.Logger) { r.log = l }

// Begin records the domain setup and marks the run as running.
func (r *Run) Begin(d *mpm.Domain, steps, saveEvery int) error {
	cfg := d.Config()
	r.meta.Grid = cfg.Dims()
	r.meta.Cell = [3]float64{cfg.Cell.X, cfg.Cell.Y, cfg.Cell.Z}
	r.meta.Kernel = cfg.Kernel.String()
	r.meta.Dt = cfg.Dt
	r.meta.Damping = cfg.Damping
	r.meta.Workers = cfg.Workers
	r.meta.Particles = len(d.Particles())
	r.meta.Boundaries = d.Boundaries().Len()
	r.meta.Steps = steps
	r.meta.SaveEvery = saveEvery
	r.start = time.Now()
	return writeJSON(filepath.Join(r.Dir, metadataFile), r.meta)
}

// OnSave implements mpm.Observer.
func (r *Run) OnSave(d *mpm.Domain, step int) error {
	r.last = r.recorder.Sample(step, d.Time(), d.Particles())
	if err := r.appendHistory(r.last); err != nil {
		return err
	}
	if stats := d.Perf(); stats.Samples > 0 {
		if err := r.appendPerf(stats.Row(step)); err != nil {
			return err
		}
	}
	if !r.Snapshots {
		return nil
	}

	ps := d.Particles()
	var g errgroup.Group
	g.Go(func() error {
		return writeCSV(filepath.Join(r.Dir, snapshotDir, particleFile(step)), particleRows(ps))
	})
	g.Go(func() error {
		return writeCSV(filepath.Join(r.Dir, snapshotDir, gridFile(step)), nodeRows(d))
	})
	if err := g.Wait(); err != nil {
		return err
	}
	r.meta.Snapshots++
	r.log.Debug("snapshot written", "run", r.ID, "step", step)
	return nil
}

func (r *Run) appendHistory(s metrics.Sample) error {
	rows := []metrics.Sample{s}
	if !r.wroteH {
		if err := gocsv.Marshal(rows, r.history); err != nil {
			return fmt.Errorf("writing history: %w", err)
		}
		r.wroteH = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(rows, r.history); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

func (r *Run) appendPerf(row telemetry.Row) error {
	rows := []telemetry.Row{row}
	if !r.wroteP {
		if err := gocsv.Marshal(rows, r.perf); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
		r.wroteP = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(rows, r.perf); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// Last returns the most recent history sample.
func (r *Run) Last() metrics.Sample { return r.last }

// Metadata returns a copy of the current metadata.
func (r *Run) Metadata() RunMetadata { return r.meta }

// Finish records the outcome of the run, writes the final metadata and
// closes the run files. runErr is the error returned by Domain.Run.
func (r *Run) Finish(d *mpm.Domain, runErr error) error {
	r.meta.StepsTaken = d.Steps()
	r.meta.Elapsed = time.Since(r.start).Seconds()
	if r.meta.Elapsed > 0 {
		r.meta.StepsPerS = float64(r.meta.StepsTaken) / r.meta.Elapsed
	}
	r.meta.Metrics = metrics.Values(metrics.Default(), d.Particles())

	switch {
	case runErr == nil:
		r.meta.Status = StatusFinished
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		r.meta.Status = StatusCanceled
		r.meta.Error = runErr.Error()
	default:
		r.meta.Status = StatusFailed
		r.meta.Error = runErr.Error()
	}

	err := writeJSON(filepath.Join(r.Dir, metadataFile), r.meta)
	return errors.Join(err, r.Close())
}

// Close closes the history and perf files.
func (r *Run) Close() error {
	var firstErr error
	if r.history != nil {
		if err := r.history.Close(); err != nil {
			firstErr = err
		}
		r.history = nil
	}
	if r.perf != nil {
		if err := r.perf.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.perf = nil
	}
	return firstErr
}
