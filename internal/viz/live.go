package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/mpmsim/internal/metrics"
	"github.com/san-kum/mpmsim/internal/mpm"
	"github.com/san-kum/mpmsim/internal/telemetry"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	width           = 60
	height          = 18
	historyCapacity = 300
)

// ProgressMsg is sent at every save point of a watched run.
type ProgressMsg struct {
	Step   int
	Sample metrics.Sample
	Points []r3.Vec
	Perf   telemetry.Stats
}

// DoneMsg ends a watched run.
type DoneMsg struct {
	Err error
}

// Observer forwards save points to the watch view. Sends block until the
// view reads them or ctx is done, so the solver never runs ahead of the
// screen by more than the channel buffer.
func Observer(ctx context.Context, ch chan<- tea.Msg) mpm.Observer {
	rec := metrics.NewRecorder()
	return mpm.ObserverFunc(func(d *mpm.Domain, step int) error {
		ps := d.Particles()
		pts := make([]r3.Vec, len(ps))
		for i := range ps {
			pts[i] = ps[i].X
		}
		msg := ProgressMsg{
			Step:   step,
			Sample: rec.Sample(step, d.Time(), ps),
			Points: pts,
			Perf:   d.Perf(),
		}
		select {
		case ch <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func waitFor(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return DoneMsg{}
		}
		return msg
	}
}

// Model is the live view of a running simulation.
type Model struct {
	name    string
	steps   int
	extent  r3.Vec
	updates <-chan tea.Msg
	cancel  context.CancelFunc

	canvas  *Canvas
	plane   Plane
	last    ProgressMsg
	energy  []float64
	started time.Time

	done     bool
	err      error
	showHelp bool
}

// NewModel watches a run of steps steps on a grid spanning extent. cancel
// is called when the user quits.
func NewModel(name string, steps int, extent r3.Vec, updates <-chan tea.Msg, cancel context.CancelFunc) Model {
	return Model{
		name:    name,
		steps:   steps,
		extent:  extent,
		updates: updates,
		cancel:  cancel,
		canvas:  NewCanvas(width, height),
		plane:   PlaneXZ,
		energy:  make([]float64, 0, historyCapacity),
		started: time.Now(),
	}
}

func (m Model) Init() tea.Cmd { return waitFor(m.updates) }

// Err returns the error the run ended with.
func (m Model) Err() error { return m.err }

func (m Model) Done() bool { return m.done }

// Update handles input and progress messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case "p":
			m.plane = m.plane.Next()
			m.canvas.Scatter(m.last.Points, m.extent, m.plane)
		case "?":
			m.showHelp = !m.showHelp
		}
	case ProgressMsg:
		m.last = msg
		m.energy = append(m.energy, msg.Sample.KineticEnergy)
		if len(m.energy) > historyCapacity {
			m.energy = m.energy[1:]
		}
		m.canvas.Scatter(msg.Points, m.extent, m.plane)
		return m, waitFor(m.updates)
	case DoneMsg:
		m.done = true
		m.err = msg.Err
	}
	return m, nil
}

// View renders the particle projection beside the run statistics.
func (m Model) View() string {
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.name)) + "\n")
	switch {
	case m.err != nil:
		s.WriteString(statusFailed.Render("FAILED") + "\n" + m.err.Error() + "\n\n")
	case m.done:
		s.WriteString(statusDone.Render("FINISHED") + "\n\n")
	default:
		s.WriteString(statusRunning.Render("RUNNING") + "\n\n")
	}

	frac := 0.0
	if m.steps > 0 {
		frac = float64(m.last.Step) / float64(m.steps)
	}
	s.WriteString(ProgressBar(frac, 30) + fmt.Sprintf(" %3.0f%%\n\n", 100*frac))

	if len(m.energy) > 1 {
		chart := asciigraph.Plot(m.energy, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	sample := m.last.Sample
	row("Step", fmt.Sprintf("%d / %d", m.last.Step, m.steps))
	row("Time", fmt.Sprintf("%.4g", sample.Time))
	row("Kinetic", fmt.Sprintf("%.4g", sample.KineticEnergy))
	row("Max speed", fmt.Sprintf("%.4g", sample.MaxSpeed))
	row("Plastic", fmt.Sprintf("%.1f%%", 100*sample.PlasticFraction))
	row("Mean szz", fmt.Sprintf("%.4g", sample.MeanSzz))
	if m.last.Perf.Samples > 0 {
		row("Steps/s", fmt.Sprintf("%.1f", m.last.Perf.StepsPerSecond))
	}
	row("Wall", time.Since(m.started).Round(time.Second).String())
	row("View", m.plane.String())

	s.WriteString(helpStyle.Render("P:Plane ?:Help Q:Quit"))
	view := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  P        - Cycle projection plane   ║
║  Q        - Stop the run and quit    ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + view
	}
	return view
}
