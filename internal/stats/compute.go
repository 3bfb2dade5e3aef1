// Package stats derives writing analytics from the writing log and the
// book list.
//
// Compute is a pure function of its inputs. Engine wraps it with a session
// cache that is dropped by Clear or by a stats change on the bus.
package stats

import (
	"math"
	"time"

	"github.com/roach88/inkwell/internal/model"
)

const (
	// HeatmapDays is the trailing window of the heatmap and streak walk.
	HeatmapDays = 365

	// AverageDays is the trailing window of the daily average.
	AverageDays = 30

	// HeatLevels is the number of non-empty intensity tiers.
	HeatLevels = 4
)

// HeatCell is one day of the activity calendar. Level is 0 for no words
// and 1..HeatLevels otherwise.
type HeatCell struct {
	Date  string `json:"date" yaml:"date"`
	Words int    `json:"words" yaml:"words"`
	Level int    `json:"level" yaml:"level"`
}

// Report is the result of one calculation.
type Report struct {
	BookID           int64        `json:"book_id,omitempty" yaml:"book_id,omitempty"` // 0 for all books
	Today            string       `json:"today" yaml:"today"`
	TotalWords       int          `json:"total_words" yaml:"total_words"`
	ThirtyDayAverage int          `json:"thirty_day_average" yaml:"thirty_day_average"`
	LongestStreak    int          `json:"longest_streak" yaml:"longest_streak"`
	CurrentStreak    int          `json:"current_streak" yaml:"current_streak"`
	ActiveDays       int          `json:"active_days" yaml:"active_days"`
	Weekday          time.Weekday `json:"most_productive_weekday" yaml:"most_productive_weekday"`
	HasWeekday       bool         `json:"has_weekday" yaml:"has_weekday"`
	TodayWords       int          `json:"today_words" yaml:"today_words"`
	DailyTarget      int          `json:"daily_target" yaml:"daily_target"`
	TargetProgress   int          `json:"target_progress" yaml:"target_progress"` // percent of DailyTarget
	Heatmap          []HeatCell   `json:"heatmap" yaml:"heatmap"`                  // oldest first
}

// WeekdayName returns the most productive weekday, or "N/A" without data.
func (r Report) WeekdayName() string {
	if !r.HasWeekday {
		return "N/A"
	}
	return r.Weekday.String()
}

// Compute derives a report for one book (bookID non-nil) or for all books.
// today is the reference calendar day; only its date part is used.
//
// Total words come from the book records. Every other figure comes from
// the log.
func Compute(logs []model.WritingLog, books []model.Book, bookID *int64, today time.Time) Report {
	r := Report{Today: model.DateOf(today)}
	if bookID != nil {
		r.BookID = *bookID
	}

	for _, b := range books {
		if bookID != nil && b.ID != *bookID {
			continue
		}
		r.TotalWords += b.WordCount
		if bookID != nil || !b.Archived {
			r.DailyTarget += b.DailyTarget
		}
	}

	byDate := make(map[string]int)
	var weekdays [7]int
	var seenWeekday bool
	for _, l := range logs {
		if bookID != nil && l.BookID != *bookID {
			continue
		}
		byDate[l.Date] += l.WordCount

		d, err := time.Parse(model.DateLayout, l.Date)
		if err != nil {
			continue
		}
		weekdays[d.Weekday()] += l.WordCount
		seenWeekday = true
	}

	if seenWeekday {
		best := time.Sunday
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			if weekdays[wd] > weekdays[best] {
				best = wd
			}
		}
		r.Weekday, r.HasWeekday = best, true
	}

	days := trailingDays(today, HeatmapDays) // oldest first

	sum := 0
	for _, d := range days[len(days)-AverageDays:] {
		sum += byDate[d]
	}
	r.ThirtyDayAverage = int(math.Round(float64(sum) / AverageDays))

	r.LongestStreak, r.CurrentStreak, r.ActiveDays = streaks(days, byDate)
	r.Heatmap = heatmap(days, byDate)

	r.TodayWords = byDate[r.Today]
	if r.DailyTarget > 0 {
		r.TargetProgress = r.TodayWords * 100 / r.DailyTarget
	}
	return r
}

// trailingDays returns the n calendar dates ending at today, oldest first.
func trailingDays(today time.Time, n int) []string {
	y, m, d := today.Date()
	base := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)

	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = model.DateOf(base.AddDate(0, 0, -i))
	}
	return out
}

// streaks walks days from newest to oldest. A day is active if it has a log
// row. The current streak ends today, or yesterday if nothing is logged yet
// today.
func streaks(days []string, byDate map[string]int) (longest, current, active int) {
	run := 0
	currentOpen := true
	for i := len(days) - 1; i >= 0; i-- {
		_, ok := byDate[days[i]]
		if ok {
			run++
			active++
			if run > longest {
				longest = run
			}
			continue
		}

		if currentOpen && i != len(days)-1 {
			current = run
			currentOpen = false
		}
		run = 0
	}
	if currentOpen {
		current = run
	}
	return longest, current, active
}

// heatmap quantizes each day by fixed division of the window's maximum.
func heatmap(days []string, byDate map[string]int) []HeatCell {
	peak := 0
	for _, d := range days {
		if w := byDate[d]; w > peak {
			peak = w
		}
	}

	cells := make([]HeatCell, len(days))
	for i, d := range days {
		w := byDate[d]
		cells[i] = HeatCell{Date: d, Words: w, Level: level(w, peak)}
	}
	return cells
}

func level(words, peak int) int {
	if words <= 0 || peak <= 0 {
		return 0
	}
	l := (HeatLevels*words + peak - 1) / peak
	return min(max(l, 1), HeatLevels)
}
