package progress

import (
	"context"
	"errors"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/chfctl/internal/transfer"
)

// ErrInterrupted is returned by Run when the user quits before the last step
var ErrInterrupted = errors.New("interrupted")

// Task is one step of Run. report feeds the step's progress bar.
type Task func(ctx context.Context, report transfer.Progress) error

// Run shows a step list titled title and executes tasks in order, one per
// step name. The first failing task stops the run.
func Run(ctx context.Context, title string, names []string, tasks []Task) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(title, names...), tea.WithContext(ctx))

	go func() {
		for _, task := range tasks {
			p.Send(StartStepMsg{})
			if err := task(ctx, Reporter(p)); err != nil {
				p.Send(FailStepMsg{Err: err})
				return
			}
			p.Send(CompleteStepMsg{})
		}
	}()

	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	m, ok := final.(Model)
	if !ok {
		return ErrInterrupted
	}
	if m.Err() != nil {
		return m.Err()
	}
	if !m.Done() {
		return ErrInterrupted
	}
	return nil
}

// Reporter returns a byte progress callback that updates p's progress bar
func Reporter(p *tea.Program) transfer.Progress {
	var last float64
	return func(done, total int64) {
		if total <= 0 {
			p.Send(SubProgressMsg{Percent: 0, Detail: FormatBytes(done)})
			return
		}
		percent := float64(done) / float64(total) * 100
		// every 1% at most
		if percent-last >= 1 || percent >= 100 {
			last = percent
			p.Send(SubProgressMsg{
				Percent: percent,
				Detail:  FormatBytes(done) + " / " + FormatBytes(total),
			})
		}
	}
}

// FormatBytes formats bytes into human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return strconv.FormatInt(bytes, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(bytes)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "B"
}
