package progress

import (
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/chfctl/internal/ui/styles"
)

// State of one step of a Run
type State int

const (
	StatePending State = iota
	StateInProgress
	StateComplete
	StateError
)

// Step is a named unit of work shown in the step list
type Step struct {
	Name  string
	State State
	Err   error
}

// Steps tracks a step list and the byte transfer of its running step
type Steps struct {
	Title   string
	List    []Step
	Current int

	// Percent (0-100) and Transferred describe the running step's download.
	// Both reset when the step changes.
	Percent     float64
	Transferred string
}

// NewSteps creates a pending step list
func NewSteps(title string, names ...string) *Steps {
	list := make([]Step, len(names))
	for i, n := range names {
		list[i] = Step{Name: n}
	}
	return &Steps{Title: title, List: list}
}

func (s *Steps) resetTransfer() {
	s.Percent = 0
	s.Transferred = ""
}

// Start marks the current step running
func (s *Steps) Start() {
	if s.Current < len(s.List) {
		s.List[s.Current].State = StateInProgress
		s.resetTransfer()
	}
}

// Complete marks the current step done and moves to the next one
func (s *Steps) Complete() {
	if s.Current < len(s.List) {
		s.List[s.Current].State = StateComplete
		s.resetTransfer()
		s.Current++
	}
}

// Fail records err on the current step
func (s *Steps) Fail(err error) {
	if s.Current < len(s.List) {
		s.List[s.Current].State = StateError
		s.List[s.Current].Err = err
	}
}

// Finished reports whether every step completed
func (s *Steps) Finished() bool {
	return s.Current == len(s.List) && !s.Failed()
}

// Failed reports whether a step recorded an error
func (s *Steps) Failed() bool {
	for _, st := range s.List {
		if st.State == StateError {
			return true
		}
	}
	return false
}

// NerdFontsEnv switches the step icons to Nerd Font glyphs when set to 1
const NerdFontsEnv = "CHFCTL_NERD_FONTS"

type iconSet struct {
	done, failed, running, pending, warning string
}

var (
	asciiIcons = iconSet{done: "+", failed: "x", running: "*", pending: "o", warning: "!"}
	nerdIcons  = iconSet{done: "\uf00c", failed: "\uf00d", running: "\uf110", pending: "\uf111", warning: "\uf071"}
)

func icons() iconSet {
	if os.Getenv(NerdFontsEnv) == "1" {
		return nerdIcons
	}
	return asciiIcons
}

var (
	doneIcon    = lipgloss.NewStyle().Foreground(styles.Success)
	failedIcon  = lipgloss.NewStyle().Foreground(styles.Error)
	runningIcon = lipgloss.NewStyle().Foreground(styles.Primary)
	pendingIcon = lipgloss.NewStyle().Foreground(styles.Muted)
	warningIcon = lipgloss.NewStyle().Foreground(styles.Warning)
)

// icon renders the glyph for state
func icon(state State) string {
	set := icons()
	switch state {
	case StateComplete:
		return doneIcon.Render(set.done)
	case StateError:
		return failedIcon.Render(set.failed)
	case StateInProgress:
		return runningIcon.Render(set.running)
	default:
		return pendingIcon.Render(set.pending)
	}
}

func textStyle(state State) lipgloss.Style {
	switch state {
	case StateComplete:
		return styles.SuccessText
	case StateError:
		return styles.ErrorText
	case StateInProgress:
		return styles.NormalText.Bold(true)
	default:
		return styles.MutedText
	}
}
