// Package tui renders caseline results for the terminal.
// Simple, streaming output - styled tables, no interactive screens.
package tui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/schollz/progressbar/v3"

	"github.com/logflow/caseline/internal/model"
	"github.com/logflow/caseline/pkg/batch"
	"github.com/logflow/caseline/pkg/source"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(white).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// PrintHeader prints the tool banner.
func PrintHeader(w io.Writer, version string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("  CASELINE")+mutedStyle.Render(" v"+version))
	fmt.Fprintln(w, mutedStyle.Render("  Activity timelines from lifecycle event logs"))
	fmt.Fprintln(w)
}

// RenderCase prints one table row per activity instance. Offsets are
// relative to the case start.
func RenderCase(w io.Writer, res *model.CaseResult) {
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Case:"), titleStyle.Render(res.CaseID))
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Start:"), res.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "  %s %d activities, %d instances\n\n",
		mutedStyle.Render("Timeline:"), len(res.Activities), res.InstanceCount())

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("ACTIVITY", "#", "OFFSET", "DURATION", "WAITED", "WAITING").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, activity := range res.Names() {
		for i, rec := range res.Activities[activity] {
			t.Row(
				activity,
				fmt.Sprintf("%d", i),
				formatDuration(rec.Start.Sub(res.Start)),
				formatDuration(rec.Duration),
				formatWaited(rec),
				formatWaiting(rec, res.Start),
			)
		}
	}

	fmt.Fprintln(w, t.Render())
}

// formatWaited sums the windows; overlapping windows count twice.
func formatWaited(rec model.IntervalRecord) string {
	if len(rec.Waiting) == 0 {
		return "-"
	}
	return formatDuration(rec.WaitingTotal())
}

func formatWaiting(rec model.IntervalRecord, caseStart time.Time) string {
	if len(rec.Waiting) == 0 {
		return "-"
	}
	parts := make([]string, len(rec.Waiting))
	for i, win := range rec.Waiting {
		parts[i] = fmt.Sprintf("%s+%s", formatDuration(win.Start.Sub(caseStart)), formatDuration(win.Duration))
	}
	return strings.Join(parts, " ")
}

// RenderSummary prints log-wide counts.
func RenderSummary(w io.Writer, location string, sum *source.Summary) {
	fmt.Fprintln(w, accentStyle.Render("▸ "+location))
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Events:"), titleStyle.Render(formatNumber(int64(sum.Events))))
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Cases:"), titleStyle.Render(formatNumber(int64(sum.Cases))))
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Activities:"), titleStyle.Render(formatNumber(int64(sum.Activities))))

	transitions := make([]string, 0, len(sum.Transitions))
	for t := range sum.Transitions {
		transitions = append(transitions, t)
	}
	sort.Strings(transitions)

	fmt.Fprintln(w, mutedStyle.Render("  Transitions:"))
	for _, t := range transitions {
		fmt.Fprintf(w, "    %-12s %d\n", t, sum.Transitions[t])
	}
}

// RenderBatchReport prints the outcome of a batch run.
func RenderBatchReport(w io.Writer, report *batch.Report, output string) {
	fmt.Fprintln(w)
	if len(report.Failures) == 0 && report.Skipped == 0 {
		fmt.Fprintln(w, successStyle.Render("  ✓ BATCH COMPLETE"))
	} else {
		fmt.Fprintln(w, accentStyle.Render("  ✗ BATCH FINISHED WITH FAILURES"))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Run:"), report.RunID)
	fmt.Fprintf(w, "  %s %d succeeded, %d failed, %d skipped\n",
		mutedStyle.Render("Cases:"), len(report.Results), len(report.Failures), report.Skipped)
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Time:"), formatDuration(report.Duration))
	if output != "" {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Output:"), output)
	}

	for _, f := range report.Failures {
		fmt.Fprintf(w, "  %s %s\n", accentStyle.Render("✗"), f.Error())
	}
	fmt.Fprintln(w)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "-" + formatDuration(-d)
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd%02dh", int(d.Hours())/24, int(d.Hours())%24)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// ShowProgress creates a progress bar writing to w.
func ShowProgress(w io.Writer, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
