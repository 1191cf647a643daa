// Package telemetry times the phases of solver steps over a rolling window
// and reports them through log/slog.
package telemetry

import (
	"fmt"
	"log/slog"
	"time"
)

// Phase is one timed section of a MUSL step.
type Phase int

const (
	P2G Phase = iota
	Grid
	G2P
	Remap
	Stress

	NumPhases
)

var phaseNames = [NumPhases]string{"p2g", "grid", "g2p", "remap", "stress"}

func (p Phase) String() string {
	if p < 0 || p >= NumPhases {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// stepTime is the wall time of one step, split by phase.
type stepTime struct {
	total time.Duration
	phase [NumPhases]time.Duration
}

// Timer keeps the last window step times in a ring. It is driven by the
// goroutine that runs the steps and is not safe for concurrent use.
type Timer struct {
	ring   []stepTime
	next   int
	filled int
	steps  int

	cur     stepTime
	begin   time.Time
	mark    time.Time
	running Phase // -1 between phases
}

// NewTimer averages over the last window steps; window < 1 means 100.
func NewTimer(window int) *Timer {
	if window < 1 {
		window = 100
	}
	return &Timer{ring: make([]stepTime, window), running: -1}
}

// Begin starts a step.
func (t *Timer) Begin() {
	t.cur = stepTime{}
	t.begin = time.Now()
	t.running = -1
}

// Enter charges the time since the last mark to the running phase and
// switches to p.
func (t *Timer) Enter(p Phase) {
	now := time.Now()
	t.charge(now)
	t.mark = now
	t.running = p
}

// End closes the step and pushes it into the ring.
func (t *Timer) End() {
	now := time.Now()
	t.charge(now)
	t.running = -1
	t.cur.total = now.Sub(t.begin)

	t.ring[t.next] = t.cur
	t.next = (t.next + 1) % len(t.ring)
	t.filled = min(t.filled+1, len(t.ring))
	t.steps++
}

func (t *Timer) charge(now time.Time) {
	if t.running >= 0 && t.running < NumPhases {
		t.cur.phase[t.running] += now.Sub(t.mark)
	}
}

// Steps returns the number of steps timed since creation.
func (t *Timer) Steps() int { return t.steps }

// Stats summarizes the steps in the window.
type Stats struct {
	Samples        int
	Mean           time.Duration
	Min            time.Duration
	Max            time.Duration
	Phase          [NumPhases]time.Duration // mean per phase
	StepsPerSecond float64
}

// Stats averages the ring.
func (t *Timer) Stats() Stats {
	s := Stats{Samples: t.filled}
	if t.filled == 0 {
		return s
	}
	var sum time.Duration
	var phases [NumPhases]time.Duration
	for i, st := range t.ring[:t.filled] {
		sum += st.total
		if i == 0 || st.total < s.Min {
			s.Min = st.total
		}
		s.Max = max(s.Max, st.total)
		for p := range phases {
			phases[p] += st.phase[p]
		}
	}
	n := time.Duration(t.filled)
	s.Mean = sum / n
	for p := range phases {
		s.Phase[p] = phases[p] / n
	}
	if s.Mean > 0 {
		s.StepsPerSecond = float64(time.Second) / float64(s.Mean)
	}
	return s
}

// Share returns the percentage of the mean step spent in p.
func (s Stats) Share(p Phase) float64 {
	if s.Mean <= 0 || p < 0 || p >= NumPhases {
		return 0
	}
	return 100 * float64(s.Phase[p]) / float64(s.Mean)
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 3+NumPhases)
	attrs = append(attrs,
		slog.Int("samples", s.Samples),
		slog.Duration("mean_step", s.Mean),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
	)
	for p := P2G; p < NumPhases; p++ {
		attrs = append(attrs, slog.Float64(p.String()+"_pct", float64(int(s.Share(p)*10))/10))
	}
	return slog.GroupValue(attrs...)
}

// Row is one line of perf.csv.
type Row struct {
	Step        int     `csv:"step"`
	MeanUS      int64   `csv:"mean_step_us"`
	MinUS       int64   `csv:"min_step_us"`
	MaxUS       int64   `csv:"max_step_us"`
	StepsPerSec float64 `csv:"steps_per_sec"`
	P2G         float64 `csv:"p2g_pct"`
	Grid        float64 `csv:"grid_pct"`
	G2P         float64 `csv:"g2p_pct"`
	Remap       float64 `csv:"remap_pct"`
	Stress      float64 `csv:"stress_pct"`
}

// Row flattens s for the save point at step.
func (s Stats) Row(step int) Row {
	return Row{
		Step:        step,
		MeanUS:      s.Mean.Microseconds(),
		MinUS:       s.Min.Microseconds(),
		MaxUS:       s.Max.Microseconds(),
		StepsPerSec: s.StepsPerSecond,
		P2G:         s.Share(P2G),
		Grid:        s.Share(Grid),
		G2P:         s.Share(G2P),
		Remap:       s.Share(Remap),
		Stress:      s.Share(Stress),
	}
}
