package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/panos108/lyapunov-learning/internal/grid"
	"github.com/panos108/lyapunov-learning/internal/learner"
)

// IterMsg delivers one completed learner iteration to the live view.
type IterMsg learner.Iteration

// DoneMsg signals that the run finished; Err is nil on success.
type DoneMsg struct{ Err error }

// Model is the live terminal view of a learning run. The learner executes in
// a separate goroutine and publishes iterations over a channel; the view
// only renders, it never influences the loop.
type Model struct {
	grid    *grid.Grid
	budget  int
	updates <-chan learner.Iteration
	done    <-chan error

	iterations []learner.Iteration
	err        error
	finished   bool
	width      int
}

func NewModel(g *grid.Grid, budget int, updates <-chan learner.Iteration, done <-chan error) Model {
	return Model{
		grid:    g,
		budget:  budget,
		updates: updates,
		done:    done,
		width:   60,
	}
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case it, ok := <-m.updates:
			if !ok {
				return DoneMsg{Err: <-m.done}
			}
			return IterMsg(it)
		case err := <-m.done:
			return DoneMsg{Err: err}
		}
	}
}

func (m Model) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		if msg.Width > 20 {
			m.width = msg.Width - 4
		}
	case IterMsg:
		m.iterations = append(m.iterations, learner.Iteration(msg))
		return m, m.waitForEvent()
	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("region-of-attraction learning"))
	b.WriteString("\n")

	n := len(m.iterations)
	b.WriteString(ProgressBar(float64(n)/float64(m.budget), 40))
	b.WriteString(fmt.Sprintf(" %d/%d\n", n, m.budget))

	if n > 0 {
		last := m.iterations[n-1]
		stats := []string{
			labelStyle.Render("level c") + valueStyle.Render(fmt.Sprintf("%.4f", last.Level)),
			labelStyle.Render("safe points") + valueStyle.Render(fmt.Sprintf("%d / %d", last.SafeCount, m.grid.Len())),
			labelStyle.Render("max variance") + valueStyle.Render(fmt.Sprintf("%.2e", last.MaxVariance)),
			labelStyle.Render("last query") + valueStyle.Render(fmt.Sprintf("%v", last.QueryPoint)),
		}
		b.WriteString(statsStyle.Render(strings.Join(stats, "\n")))
		b.WriteString("\n")

		levels := make([]float64, n)
		fractions := make([]float64, n)
		for i, it := range m.iterations {
			levels[i] = it.Level
			fractions[i] = float64(it.SafeCount) / float64(m.grid.Len())
		}
		if chart := LevelTrace(levels, m.width/2); chart != "" {
			b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
				chart, "  ", SafeFractionTrace(fractions, m.width/2)))
			b.WriteString("\n")
		}
	}

	if m.finished {
		if m.err != nil {
			b.WriteString(fmt.Sprintf("run failed: %v\n", m.err))
		} else {
			b.WriteString("run complete\n")
		}
	}
	b.WriteString(helpStyle.Render("q: quit"))
	return b.String()
}
