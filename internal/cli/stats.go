package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/inkwell/internal/model"
	"github.com/roach88/inkwell/internal/stats"
)

// heatmapWeeks is how much of the heatmap the text view shows.
const heatmapWeeks = 12

var heatGlyphs = []rune{'·', '░', '▒', '▓', '█'}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	var bookID int64

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show writing statistics for one book or all books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, rootOpts, func(a *app) error {
				title := "all books"
				var scope *int64
				if cmd.Flags().Changed("book") {
					b, ok := a.library.Book(bookID)
					if !ok {
						return NewExitError(ExitCommandError, fmt.Sprintf("book %d not found", bookID))
					}
					title = fmt.Sprintf("%q", b.Title)
					scope = &bookID
				}

				report, err := a.stats.Calculate(ctx, scope)
				if err != nil {
					return storeError("calculate statistics", err)
				}
				return rootOpts.formatter(cmd).Render(report, func(w io.Writer) error {
					return renderReport(w, title, report)
				})
			})
		},
	}

	cmd.Flags().Int64Var(&bookID, "book", 0, "limit to one book")
	return cmd
}

// renderReport writes the text form of a statistics report.
func renderReport(w io.Writer, title string, r stats.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Writing statistics for %s\n\n", title)

	line := func(label, value string) {
		fmt.Fprintf(&b, "  %-21s %s\n", label+":", value)
	}
	line("Today", r.Today)
	line("Total words", fmt.Sprint(r.TotalWords))
	line("30-day average", fmt.Sprintf("%d words/day", r.ThirtyDayAverage))
	line("Current streak", days(r.CurrentStreak))
	line("Longest streak", days(r.LongestStreak))
	line("Active days", fmt.Sprint(r.ActiveDays))
	line("Most productive day", r.WeekdayName())
	if r.DailyTarget > 0 {
		line("Today's words", fmt.Sprintf("%d / %d (%d%%)", r.TodayWords, r.DailyTarget, r.TargetProgress))
	} else {
		line("Today's words", fmt.Sprint(r.TodayWords))
	}

	b.WriteString("\n")
	renderHeatmap(&b, r.Heatmap)

	_, err := io.WriteString(w, b.String())
	return err
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// renderHeatmap draws the most recent weeks as a weekday-by-week grid,
// Sunday on top, oldest week on the left.
func renderHeatmap(b *strings.Builder, cells []stats.HeatCell) {
	if len(cells) == 0 {
		b.WriteString("  No activity recorded.\n")
		return
	}

	last, err := model.ParseDate(cells[len(cells)-1].Date, time.UTC)
	if err != nil {
		fmt.Fprintf(b, "  Heatmap unavailable: %v\n", err)
		return
	}
	window := (heatmapWeeks-1)*7 + int(last.Weekday()) + 1
	if len(cells) > window {
		cells = cells[len(cells)-window:]
	}

	first, err := model.ParseDate(cells[0].Date, time.UTC)
	if err != nil {
		fmt.Fprintf(b, "  Heatmap unavailable: %v\n", err)
		return
	}
	origin := first.AddDate(0, 0, -int(first.Weekday()))
	weeks := dayDiff(origin, last)/7 + 1

	grid := make([][]rune, 7)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", weeks))
	}
	for _, c := range cells {
		d, err := model.ParseDate(c.Date, time.UTC)
		if err != nil {
			continue
		}
		level := min(max(c.Level, 0), len(heatGlyphs)-1)
		grid[d.Weekday()][dayDiff(origin, d)/7] = heatGlyphs[level]
	}

	fmt.Fprintf(b, "  Activity, last %d weeks\n", heatmapWeeks)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		row := fmt.Sprintf("  %s %s", wd.String()[:3], string(grid[wd]))
		b.WriteString(strings.TrimRight(row, " ") + "\n")
	}
	fmt.Fprintf(b, "  less %s more\n", string(heatGlyphs))
}

func dayDiff(from, to time.Time) int {
	return int(to.Sub(from).Hours()/24 + 0.5)
}
