package progress

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStepsLifecycle(t *testing.T) {
	s := NewSteps("Installing Zara", "Resolving", "Downloading")

	s.Start()
	s.Percent, s.Transferred = 40, "4 KB / 10 KB"
	if s.List[0].State != StateInProgress {
		t.Fatalf("after start: %+v", s.List[0])
	}

	s.Complete()
	if s.Current != 1 || s.Percent != 0 || s.Transferred != "" {
		t.Fatalf("complete should reset the transfer: %+v", s)
	}
	if s.Finished() {
		t.Fatal("one step left")
	}

	s.Start()
	s.Complete()
	if !s.Finished() || s.Failed() {
		t.Fatalf("final state = %+v", s)
	}
}

func TestModelStopsOnFailure(t *testing.T) {
	var m tea.Model = NewModel("Self-update", "Checking", "Downloading")

	m, _ = m.Update(StartStepMsg{})
	m, _ = m.Update(CompleteStepMsg{})
	m, _ = m.Update(StartStepMsg{})

	boom := errors.New("boom")
	m, cmd := m.Update(FailStepMsg{Err: boom})
	if cmd == nil {
		t.Fatal("failure should quit the program")
	}

	final := m.(Model)
	if !final.Done() || !errors.Is(final.Err(), boom) {
		t.Fatalf("done=%v err=%v", final.Done(), final.Err())
	}
	if !final.Steps().Failed() || final.Steps().Finished() {
		t.Fatal("failed step not recorded")
	}
}

func TestModelCompletes(t *testing.T) {
	var m tea.Model = NewModel("Sync", "Copying")
	m, _ = m.Update(StartStepMsg{})
	m, _ = m.Update(CompleteStepMsg{})
	if !m.(Model).Done() {
		t.Fatal("model should be done after the last step")
	}
}

func TestViewShowsTransferWithoutTotal(t *testing.T) {
	var m tea.Model = NewModel("Install", "Downloading")
	m, _ = m.Update(StartStepMsg{})
	m, _ = m.Update(SubProgressMsg{Percent: 0, Detail: "12.0 KB"})

	if got := m.View(); !strings.Contains(got, "12.0 KB") {
		t.Fatalf("view missing byte counter:\n%s", got)
	}
}

