// Package tui renders a live terminal view of an exchange in flight:
// channel parameters on the left, a scrolling step-latency graph on the
// right. It reads from the metrics collector the bridge loop writes to.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/forcebridge/forcebridge/internal/metrics"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(40)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 2)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// Status is the slowly-changing run description shown next to the
// counters.
type Status struct {
	Transport  string
	Channel    string
	Particles  int
	NNeighs    int
	Precision  string
	ForceMode  string
	Generation uint32
	Done       bool
	Err        error
}

// StatusFunc is polled every frame.
type StatusFunc func() Status

// Model is the bubbletea model for the live monitor.
type Model struct {
	stats  *metrics.Exchange
	status StatusFunc
	last   Status
	width  int
}

func NewModel(stats *metrics.Exchange, status StatusFunc) Model {
	return Model{stats: stats, status: status, width: 100}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case TickMsg:
		m.last = m.status()
		if m.last.Done {
			return m, tea.Quit
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	s := m.last

	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	row("transport", s.Transport)
	row("channel", fmt.Sprintf("%s (gen %d)", s.Channel, s.Generation))
	row("particles", fmt.Sprintf("%d x %d neighbors", s.Particles, s.NNeighs))
	row("layout", fmt.Sprintf("%s / %s", s.Precision, s.ForceMode))
	b.WriteString("\n")
	row("steps", fmt.Sprintf("%d", m.stats.Steps()))
	row("mean", m.stats.MeanLatency().Round(time.Microsecond).String())
	row("max", m.stats.MaxLatency().Round(time.Microsecond).String())
	out, in := m.stats.Bytes()
	row("sent", formatBytes(out))
	row("received", formatBytes(in))
	if s.Err != nil {
		b.WriteString("\n")
		row("error", s.Err.Error())
	}

	graph := "waiting for steps..."
	history := m.stats.History()
	if len(history) > 1 {
		w := m.width - 52
		if w < 20 {
			w = 20
		}
		if len(history) > w {
			history = history[len(history)-w:]
		}
		graph = asciigraph.Plot(history,
			asciigraph.Height(12),
			asciigraph.Caption("step latency (ms)"),
		)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		statsStyle.Render(b.String()),
		graphStyle.Render(graph),
	)

	return headerStyle.Render("forcebridge exchange") + "\n" +
		body + "\n" +
		helpStyle.Render("q: quit")
}

func formatBytes(n uint64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// Run blocks until the monitored run finishes or the user quits.
func Run(stats *metrics.Exchange, status StatusFunc) error {
	p := tea.NewProgram(NewModel(stats, status))
	_, err := p.Run()
	return err
}
