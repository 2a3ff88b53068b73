package progress

import (
	"fmt"

	"github.com/bnema/chfctl/internal/ui/styles"
)

// Line-based counterparts of the step list, for non-interactive commands

func printStep(state State, message string) {
	fmt.Printf("  %s %s\n", icon(state), textStyle(state).Render(message))
}

func PrintTitle(title string) {
	fmt.Printf("%s\n\n", styles.NormalText.Bold(true).Render(title))
}

func PrintInProgress(message string) {
	printStep(StateInProgress, message)
}

func PrintComplete(message string) {
	printStep(StateComplete, message)
}

// PrintSuccess is PrintComplete for final outcome lines
func PrintSuccess(message string) {
	printStep(StateComplete, message)
}

func PrintError(message string) {
	printStep(StateError, message)
}

func PrintWarning(message string) {
	fmt.Printf("  %s %s\n", warningIcon.Render(icons().warning), styles.WarningText.Render(message))
}

// PrintDetail prints an indented muted line under the previous step
func PrintDetail(detail string) {
	fmt.Printf("      %s\n", styles.MutedText.Render(detail))
}

// PrintSummary prints a muted line preceded by a blank one
func PrintSummary(format string, args ...any) {
	fmt.Printf("\n  %s\n", styles.MutedText.Render(fmt.Sprintf(format, args...)))
}

func PrintNewline() {
	fmt.Println()
}
