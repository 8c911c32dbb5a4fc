package smoke

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("42")
	colorError   = lipgloss.Color("196")
	colorDim     = lipgloss.Color("241")
	colorHeader  = lipgloss.Color("39")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorHeader)

	passStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSuccess)

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorError)

	skipStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	detailStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

// Report renders the outcomes as a terminal report with a per-scenario
// verdict line and a final tally.
func Report(outcomes []Outcome) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("smoke results"))
	b.WriteString("\n")

	passed, failed, skipped := 0, 0, 0
	for _, outcome := range outcomes {
		switch {
		case outcome.Skipped:
			skipped++
			fmt.Fprintf(&b, "%s %s\n", skipStyle.Render("SKIP"), outcome.Scenario)
		case outcome.Err != nil:
			failed++
			fmt.Fprintf(&b, "%s %s (%s)\n", failStyle.Render("FAIL"), outcome.Scenario, formatDuration(outcome.Duration))
			fmt.Fprintf(&b, "     %s\n", detailStyle.Render(outcome.Err.Error()))
		default:
			passed++
			fmt.Fprintf(&b, "%s %s (%s)", passStyle.Render("PASS"), outcome.Scenario, formatDuration(outcome.Duration))
			if len(outcome.Tools) > 0 {
				fmt.Fprintf(&b, " %s", detailStyle.Render("tools: "+strings.Join(outcome.Tools, ", ")))
			}
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed, %d skipped\n", passed, failed, skipped)
	return b.String()
}

func formatDuration(d time.Duration) string {
	return d.Truncate(time.Millisecond).String()
}
