package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/inkwell/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func logsOn(bookID int64, words int, dates ...string) []model.WritingLog {
	out := make([]model.WritingLog, len(dates))
	for i, d := range dates {
		out[i] = model.WritingLog{BookID: bookID, Date: d, WordCount: words}
	}
	return out
}

func TestCompute_Empty(t *testing.T) {
	r := Compute(nil, nil, nil, day(2024, time.January, 10))

	assert.Equal(t, "2024-01-10", r.Today)
	assert.Zero(t, r.TotalWords)
	assert.Zero(t, r.ThirtyDayAverage)
	assert.Zero(t, r.LongestStreak)
	assert.Zero(t, r.CurrentStreak)
	assert.False(t, r.HasWeekday)
	assert.Equal(t, "N/A", r.WeekdayName())
	require.Len(t, r.Heatmap, HeatmapDays)
	for _, c := range r.Heatmap {
		assert.Zero(t, c.Level)
	}
}

func TestCompute_LongestStreak(t *testing.T) {
	logs := logsOn(1, 100, "2024-01-01", "2024-01-02", "2024-01-03", "2024-01-05")

	r := Compute(logs, nil, nil, day(2024, time.January, 5))
	assert.Equal(t, 3, r.LongestStreak)
	assert.Equal(t, 1, r.CurrentStreak)
	assert.Equal(t, 4, r.ActiveDays)

	r = Compute(logs, nil, nil, day(2024, time.January, 20))
	assert.Equal(t, 3, r.LongestStreak)
	assert.Equal(t, 0, r.CurrentStreak)
}

func TestCompute_CurrentStreakIncludesToday(t *testing.T) {
	logs := logsOn(1, 10, "2024-03-08", "2024-03-09", "2024-03-10")

	r := Compute(logs, nil, nil, day(2024, time.March, 10))
	assert.Equal(t, 3, r.CurrentStreak)
	assert.Equal(t, 3, r.LongestStreak)

	// Nothing written yet today: yesterday's run is still current.
	r = Compute(logs, nil, nil, day(2024, time.March, 11))
	assert.Equal(t, 3, r.CurrentStreak)
}

func TestCompute_StreakWindowIs365Days(t *testing.T) {
	logs := logsOn(1, 10, "2023-01-01", "2023-01-02", "2023-01-03", "2023-01-04")
	logs = append(logs, logsOn(1, 10, "2024-01-09")...)

	r := Compute(logs, nil, nil, day(2024, time.January, 10))
	assert.Equal(t, 1, r.LongestStreak, "runs older than the window are ignored")
}

func TestCompute_MostProductiveWeekday(t *testing.T) {
	// 2024-01-01 is a Monday.
	logs := logsOn(1, 100, "2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22")
	logs = append(logs, logsOn(1, 10, "2024-01-02")...)

	r := Compute(logs, nil, nil, day(2024, time.January, 31))
	require.True(t, r.HasWeekday)
	assert.Equal(t, time.Monday, r.Weekday)
	assert.Equal(t, "Monday", r.WeekdayName())
}

func TestCompute_WeekdayTieGoesToLowestIndex(t *testing.T) {
	// Sunday 2024-01-07 and Wednesday 2024-01-03.
	logs := append(logsOn(1, 50, "2024-01-03"), logsOn(1, 50, "2024-01-07")...)

	r := Compute(logs, nil, nil, day(2024, time.January, 10))
	assert.Equal(t, time.Sunday, r.Weekday)
}

func TestCompute_TotalWordsFromBooks(t *testing.T) {
	books := []model.Book{
		{ID: 1, WordCount: 1200, DailyTarget: 500},
		{ID: 2, WordCount: 800, DailyTarget: 300},
		{ID: 3, WordCount: 50, DailyTarget: 1000, Archived: true},
	}
	logs := append(logsOn(1, 400, "2024-01-10"), logsOn(2, 100, "2024-01-10")...)

	all := Compute(logs, books, nil, day(2024, time.January, 10))
	assert.Equal(t, 2050, all.TotalWords, "book records, not the log")
	assert.Equal(t, 800, all.DailyTarget, "archived books carry no target")
	assert.Equal(t, 500, all.TodayWords)
	assert.Equal(t, 62, all.TargetProgress)

	one := int64(1)
	r := Compute(logs, books, &one, day(2024, time.January, 10))
	assert.Equal(t, int64(1), r.BookID)
	assert.Equal(t, 1200, r.TotalWords)
	assert.Equal(t, 400, r.TodayWords)
	assert.Equal(t, 80, r.TargetProgress)
}

func TestCompute_ThirtyDayAverage(t *testing.T) {
	logs := []model.WritingLog{
		{BookID: 1, Date: "2024-01-31", WordCount: 300},
		{BookID: 1, Date: "2024-01-02", WordCount: 160}, // 29 days back: inside
		{BookID: 1, Date: "2024-01-01", WordCount: 9000}, // 30 days back: outside
	}
	r := Compute(logs, nil, nil, day(2024, time.January, 31))
	assert.Equal(t, 15, r.ThirtyDayAverage) // round(460 / 30)
}

func TestCompute_FiltersByBook(t *testing.T) {
	logs := append(logsOn(1, 10, "2024-01-08", "2024-01-09"), logsOn(2, 10, "2024-01-10")...)
	two := int64(2)

	r := Compute(logs, nil, &two, day(2024, time.January, 10))
	assert.Equal(t, 1, r.LongestStreak)

	r = Compute(logs, nil, nil, day(2024, time.January, 10))
	assert.Equal(t, 3, r.LongestStreak)
}

func TestCompute_Heatmap(t *testing.T) {
	logs := []model.WritingLog{
		{BookID: 1, Date: "2024-01-10", WordCount: 400},
		{BookID: 1, Date: "2024-01-09", WordCount: 100},
		{BookID: 1, Date: "2024-01-08", WordCount: 101},
		{BookID: 1, Date: "2024-01-07", WordCount: 1},
		{BookID: 2, Date: "2024-01-07", WordCount: 299},
	}
	r := Compute(logs, nil, nil, day(2024, time.January, 10))

	require.Len(t, r.Heatmap, HeatmapDays)
	assert.Equal(t, "2023-01-11", r.Heatmap[0].Date)
	last := r.Heatmap[len(r.Heatmap)-4:]
	assert.Equal(t, []HeatCell{
		{Date: "2024-01-07", Words: 300, Level: 3},
		{Date: "2024-01-08", Words: 101, Level: 2},
		{Date: "2024-01-09", Words: 100, Level: 1},
		{Date: "2024-01-10", Words: 400, Level: 4},
	}, last)
}

func TestCompute_Deterministic(t *testing.T) {
	logs := logsOn(1, 42, "2024-01-01", "2024-01-03", "2024-01-04")
	books := []model.Book{{ID: 1, WordCount: 126}}
	today := day(2024, time.January, 4)

	assert.Equal(t, Compute(logs, books, nil, today), Compute(logs, books, nil, today))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, 0, level(0, 100))
	assert.Equal(t, 0, level(5, 0))
	assert.Equal(t, 1, level(1, 1000))
	assert.Equal(t, 1, level(25, 100))
	assert.Equal(t, 2, level(26, 100))
	assert.Equal(t, 4, level(100, 100))
}
