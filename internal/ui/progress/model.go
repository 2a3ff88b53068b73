package progress

import (
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/chfctl/internal/ui/styles"
)

// Messages driving the Model, sent by Run's worker goroutine
type (
	StartStepMsg    struct{}
	CompleteStepMsg struct{}
	FailStepMsg     struct{ Err error }
	SubProgressMsg  struct {
		Percent float64
		Detail  string
	}
)

// Model renders a Steps list with a spinner on the running step and a
// progress bar while it transfers bytes
type Model struct {
	steps   *Steps
	spinner spinner.Model
	bar     progress.Model
	done    bool
	err     error
}

// NewModel creates a model for the named steps
func NewModel(title string, names ...string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner

	return Model{
		steps:   NewSteps(title, names...),
		spinner: s,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.WindowSize())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-10, 40)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd

	case StartStepMsg:
		m.steps.Start()

	case CompleteStepMsg:
		m.steps.Complete()
		if m.steps.Finished() {
			m.done = true
			return m, tea.Quit
		}

	case FailStepMsg:
		m.steps.Fail(msg.Err)
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case SubProgressMsg:
		m.steps.Percent = msg.Percent
		m.steps.Transferred = msg.Detail
		return m, m.bar.SetPercent(msg.Percent / 100)
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render(m.steps.Title))
	b.WriteString("\n\n")

	for _, st := range m.steps.List {
		glyph := icon(st.State)
		if st.State == StateInProgress {
			glyph = m.spinner.View()
		}
		b.WriteString("  " + glyph + " " + textStyle(st.State).Render(st.Name) + "\n")

		if st.State != StateInProgress {
			continue
		}
		if m.steps.Transferred != "" {
			b.WriteString("      " + styles.MutedText.Render(m.steps.Transferred) + "\n")
		}
		if m.steps.Percent > 0 {
			b.WriteString("    " + m.bar.View() + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

// Err returns the error of the failed step, if any
func (m Model) Err() error {
	return m.err
}

// Done reports whether the run finished or failed (as opposed to being
// quit by the user)
func (m Model) Done() bool {
	return m.done
}

// Steps returns the step list
func (m Model) Steps() *Steps {
	return m.steps
}
