package main

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/san-kum/mpmsim/internal/config"
	"github.com/spf13/cobra"
)

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "run"}
	addOverrideFlags(cmd)
	cmd.Flags().BoolVar(&noSnapshots, "no-snapshots", false, "")
	if err := cmd.ParseFlags([]string{"--steps", "42", "--kernel", "linear", "--no-snapshots"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.GetPreset("column")
	wantDt := cfg.Time.Dt
	applyFlags(cmd, cfg)

	if cfg.Time.Steps != 42 || cfg.Grid.Kernel != "linear" {
		t.Errorf("flags not applied: steps %d kernel %s", cfg.Time.Steps, cfg.Grid.Kernel)
	}
	if cfg.Output.Snapshots {
		t.Error("--no-snapshots should disable snapshots")
	}
	if cfg.Time.Dt != wantDt || cfg.Time.SaveEvery != 250 {
		t.Errorf("unset flags should keep scenario values, got dt %g save_every %d", cfg.Time.Dt, cfg.Time.SaveEvery)
	}
}

func TestDefaultWorkerCounts(t *testing.T) {
	tests := []struct {
		cpus int
		want []int
	}{
		{0, []int{1}},
		{1, []int{1}},
		{4, []int{1, 2, 4}},
		{6, []int{1, 2, 4, 6}},
		{8, []int{1, 2, 4, 8}},
	}
	for _, tt := range tests {
		if got := defaultWorkerCounts(tt.cpus); !slices.Equal(got, tt.want) {
			t.Errorf("cpus %d: expected %v, got %v", tt.cpus, tt.want, got)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, "warn")
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hidden")
	l.Warn("shown", "step", 3)
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "step=3") {
		t.Errorf("unexpected log output %q", buf.String())
	}

	if _, err := newLogger(&buf, "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSortedKeys(t *testing.T) {
	got := sortedKeys(map[string]float64{"b": 1, "a": 2, "c": 3})
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("unexpected order %v", got)
	}
}

func TestParseSweepParams(t *testing.T) {
	names, ranges, err := parseSweepParams([]string{"dt=0.5, 1", "friction=30"})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names, []string{"dt", "friction"}) {
		t.Errorf("unexpected names %v", names)
	}
	if !slices.Equal(ranges[0], []float64{0.5, 1}) || !slices.Equal(ranges[1], []float64{30}) {
		t.Errorf("unexpected ranges %v", ranges)
	}

	for _, bad := range [][]string{{"dt"}, {"=1"}, {"dt=a"}, {"dt=1", "dt=2"}} {
		if _, _, err := parseSweepParams(bad); err == nil {
			t.Errorf("expected error for %v", bad)
		}
	}
}
