// Package tui renders the dashboard in a terminal with bubbletea.
package tui

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/editor"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/status"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/window"
)

const (
	minChartWidth  = 30
	minChartHeight = 6
	axisWidth      = 6
)

var (
	accent    = lipgloss.Color("#F6AE2D")
	tempColor = lipgloss.Color("#FF6B6B")
	setColor  = lipgloss.Color("#20B6D9")
	muted     = lipgloss.Color("#8CA1AE")
	okColor   = lipgloss.Color("#44E7AE")

	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	okStyle       = lipgloss.NewStyle().Foreground(okColor).Bold(true)
	errStyle      = lipgloss.NewStyle().Foreground(tempColor).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(muted)
	tempStyle     = lipgloss.NewStyle().Foreground(tempColor)
	setStyle      = lipgloss.NewStyle().Foreground(setColor)
	selectedStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	dirtyStyle    = lipgloss.NewStyle().Foreground(tempColor).Bold(true)
	panelStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2D6A80")).
			Padding(0, 1)
)

type tickMsg time.Time

// Model is the bubbletea model for the dashboard.
type Model struct {
	tracker  *status.Tracker
	interval time.Duration
	snap     status.Snapshot
	selected int
	width    int
	height   int
	errText  string
}

// New creates a Model that refreshes from tracker every interval.
func New(tracker *status.Tracker, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{
		tracker:  tracker,
		interval: interval,
		snap:     tracker.Snapshot(),
		width:    80,
		height:   24,
	}
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(at time.Time) tea.Msg {
		return tickMsg(at)
	})
}

// Update handles ticks, resizes and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.snap = m.tracker.Snapshot()
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j", "tab":
			if m.selected < len(m.snap.Fields)-1 {
				m.selected++
			}
		case "+", "=", "right", "l":
			m.apply(editor.ActionIncrement)
		case "-", "left", "h":
			m.apply(editor.ActionDecrement)
		case "enter":
			m.apply(editor.ActionCommit)
		case "esc":
			m.apply(editor.ActionCancel)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) apply(action editor.Action) {
	if m.selected >= len(m.snap.Fields) {
		return
	}
	param := m.snap.Fields[m.selected].Param
	if err := m.tracker.Apply(param, action); err != nil {
		log.Printf("tui: %s %s: %v", action, param, err)
		m.errText = err.Error()
	} else {
		m.errText = ""
	}
	m.snap = m.tracker.Snapshot()
}

// View renders the dashboard.
func (m Model) View() string {
	var b strings.Builder

	conn := errStyle.Render("disconnected")
	if m.snap.Connected {
		conn = okStyle.Render("connected")
	}
	b.WriteString(headerStyle.Render("Espresso") + " " + conn + " " + mutedStyle.Render(m.snap.Config.Broker))
	b.WriteString("\n")

	chartWidth := max(m.width-axisWidth-4, minChartWidth)
	chartHeight := max(m.height-16, minChartHeight)
	if m.snap.Ready {
		b.WriteString(panelStyle.Render(renderChart(m.snap.Projection, chartWidth, chartHeight)))
	} else {
		b.WriteString(panelStyle.Render(lipgloss.Place(chartWidth+axisWidth, chartHeight, lipgloss.Center, lipgloss.Center,
			mutedStyle.Render("Waiting for data..."))))
	}
	b.WriteString("\n")

	b.WriteString(m.readouts())
	b.WriteString("\n\n")
	b.WriteString(m.fields())
	b.WriteString("\n")
	if m.errText != "" {
		b.WriteString(errStyle.Render(m.errText) + "\n")
	}
	b.WriteString(mutedStyle.Render("↑/↓ select  +/- adjust  enter set  esc cancel  q quit"))
	return b.String()
}

func (m Model) readouts() string {
	if !m.snap.HasLatest {
		return mutedStyle.Render("no telemetry yet")
	}
	s := m.snap.Latest
	return fmt.Sprintf("%s %s  %s %s  heater %.0f%%  shot %.1f s",
		tempStyle.Render("temp"), fmt.Sprintf("%.1f°C", s.Temperature),
		setStyle.Render("set"), fmt.Sprintf("%.1f°C", s.Setpoint),
		s.DutyCycle*100, s.ShotDuration)
}

func (m Model) fields() string {
	var lines []string
	for i, f := range m.snap.Fields {
		cursor := "  "
		label := fmt.Sprintf("%-16s", f.Label)
		if i == m.selected {
			cursor = "> "
			label = selectedStyle.Render(label)
		}
		value := "-"
		if f.Known {
			value = fmt.Sprintf("%.0f %s", f.Staged, f.Unit)
		}
		if f.Dirty() {
			value = dirtyStyle.Render(value) + mutedStyle.Render(fmt.Sprintf(" (was %.0f, enter to set)", f.Authoritative))
		}
		lines = append(lines, cursor+label+" "+value)
	}
	return strings.Join(lines, "\n")
}

// renderChart plots temperature and setpoint as a character grid with a
// temperature axis on the left and tick labels underneath.
func renderChart(p window.Projection, width, height int) string {
	// Scale over the full horizon so the plot does not stretch while the
	// buffer is still filling.
	full := p
	full.TimeDomain = window.Domain{Min: float64(-p.HorizonSeconds) * 1000, Max: 0}

	pts := window.Scale(full, float64(width-1), float64(height-1))
	kinds := make([][]byte, height)
	for i := range kinds {
		kinds[i] = make([]byte, width)
	}
	plot := func(x, y float64, kind byte) {
		col, row := int(math.Round(x)), int(math.Round(y))
		if col < 0 || col >= width || row < 0 || row >= height {
			return
		}
		if kinds[row][col] == 't' {
			return
		}
		kinds[row][col] = kind
	}
	for _, pt := range pts {
		plot(pt.X, pt.Setpoint, 's')
		plot(pt.X, pt.Temperature, 't')
	}

	var b strings.Builder
	for row := 0; row < height; row++ {
		switch row {
		case 0:
			fmt.Fprintf(&b, "%4.0f ┤", p.TempDomain.Max)
		case height - 1:
			fmt.Fprintf(&b, "%4.0f ┤", p.TempDomain.Min)
		default:
			b.WriteString("     │")
		}
		for col := 0; col < width; col++ {
			switch kinds[row][col] {
			case 't':
				b.WriteString(tempStyle.Render("•"))
			case 's':
				b.WriteString(setStyle.Render("·"))
			default:
				b.WriteByte(' ')
			}
		}
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat(" ", axisWidth))
	b.WriteString(tickLine(p, width))
	return b.String()
}

func tickLine(p window.Projection, width int) string {
	line := []rune(strings.Repeat(" ", width))
	xd := window.Domain{Min: float64(-p.HorizonSeconds) * 1000, Max: 0}
	if len(p.Ticks) == 0 {
		return string(line)
	}
	// The newest tick is pinned flush right; the rest fill in left to right.
	last := []rune(window.TickLabel(p.Ticks[len(p.Ticks)-1]))
	end := width - len(last)
	if end < 0 {
		return string(line)
	}
	next := 0
	for _, ms := range p.Ticks[:len(p.Ticks)-1] {
		label := []rune(window.TickLabel(ms))
		col := int(math.Round(window.ScaleX(xd, float64(ms), float64(width-1))))
		if col < next || col+len(label) >= end {
			continue
		}
		copy(line[col:], label)
		next = col + len(label) + 1
	}
	copy(line[end:], last)
	return string(line)
}
