package timesheet

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func date(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func entry(project, day string, minutes int) domain.TimeEntry {
	return domain.TimeEntry{ID: project + day, UserID: "ana", ProjectID: project, Date: day, DurationMinutes: minutes}
}

func TestWeekStartNormalizesToMonday(t *testing.T) {
	cases := map[string]string{
		"2024-03-04": "2024-03-04",
		"2024-03-06": "2024-03-04",
		"2024-03-10": "2024-03-04",
		"2024-03-11": "2024-03-11",
		"2024-01-03": "2024-01-01",
	}
	for in, want := range cases {
		assert.Equal(t, want, WeekStart(date(in)).Format(DateLayout), in)
	}
}

func TestBuildGroupsByProjectAndDay(t *testing.T) {
	entries := []domain.TimeEntry{
		entry("p1", "2024-03-04", 60),
		entry("p1", "2024-03-04", 30),
		entry("p2", "2024-03-05", 45),
		entry("p1", "2024-03-10", 15),
		entry("p1", "2024-03-11", 999),
		entry("p1", "2024-03-03", 999),
	}
	deletedAt := "2024-03-05T10:00:00Z"
	gone := entry("p2", "2024-03-06", 500)
	gone.DeletedAt = &deletedAt
	entries = append(entries, gone)

	w := Build("ana", date("2024-03-07"), entries)

	want := []ProjectWeek{
		{ProjectID: "p1", Days: map[string]int{"2024-03-04": 90, "2024-03-10": 15}, Total: 105},
		{ProjectID: "p2", Days: map[string]int{"2024-03-05": 45}, Total: 45},
	}
	if diff := cmp.Diff(want, w.Projects); diff != "" {
		t.Fatalf("projects mismatch (-want +got):\n%s", diff)
	}
	wantDays := map[string]int{
		"2024-03-04": 90, "2024-03-05": 45, "2024-03-06": 0, "2024-03-07": 0,
		"2024-03-08": 0, "2024-03-09": 0, "2024-03-10": 15,
	}
	if diff := cmp.Diff(wantDays, w.DayTotals); diff != "" {
		t.Fatalf("day totals mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "2024-03-04", w.WeekStart)
	assert.Equal(t, "2024-03-10", w.WeekEnd)
	assert.Equal(t, 150, w.WeekTotal)
	assert.Len(t, w.Entries, 4)
}

func TestBuildTotalsAgree(t *testing.T) {
	var entries []domain.TimeEntry
	projects := []string{"a", "b", "c"}
	for i := 0; i < 40; i++ {
		day := WeekStart(date("2024-05-01")).AddDate(0, 0, i%9).Format(DateLayout)
		entries = append(entries, entry(projects[i%3], day, 7*i+1))
	}
	w := Build("ana", date("2024-05-01"), entries)
	sumDays, sumProjects := 0, 0
	for _, v := range w.DayTotals {
		sumDays += v
	}
	for _, p := range w.Projects {
		sumProjects += p.Total
	}
	assert.Equal(t, w.WeekTotal, sumDays)
	assert.Equal(t, w.WeekTotal, sumProjects)
	assert.Len(t, w.DayTotals, 7)
}

func TestEmptyWeek(t *testing.T) {
	w := Build("ana", date("2024-03-04"), nil)
	assert.Equal(t, 0, w.WeekTotal)
	assert.Empty(t, w.Projects)
	assert.Len(t, w.DayTotals, 7)
}

func TestUtilizationPct(t *testing.T) {
	assert.Equal(t, 50, UtilizationPct(1200, 2400))
	assert.Equal(t, 0, UtilizationPct(1200, 0))
	assert.Equal(t, 33, UtilizationPct(800, 2400))
	assert.Equal(t, 125, UtilizationPct(3000, 2400))
}

func TestMissingDays(t *testing.T) {
	w := Build("ana", date("2024-03-04"), []domain.TimeEntry{
		entry("p1", "2024-03-04", 60),
		entry("p1", "2024-03-06", 60),
	})
	workdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

	got := MissingDays(w, date("2024-03-07"), workdays)
	assert.Equal(t, []string{"2024-03-05", "2024-03-07"}, got)

	got = MissingDays(w, date("2024-03-17"), workdays)
	assert.Equal(t, []string{"2024-03-05", "2024-03-07", "2024-03-08"}, got)

	got = MissingDays(w, date("2024-03-01"), workdays)
	assert.Empty(t, got)
}

func TestElapsedMinutes(t *testing.T) {
	assert.Equal(t, 1, ElapsedMinutes(10*time.Second, RoundNearest, 1))
	assert.Equal(t, 90, ElapsedMinutes(90*time.Minute+20*time.Second, RoundNearest, 1))
	assert.Equal(t, 91, ElapsedMinutes(90*time.Minute+40*time.Second, RoundNearest, 1))
	assert.Equal(t, 91, ElapsedMinutes(90*time.Minute+1*time.Second, RoundUp, 1))
	assert.Equal(t, 90, ElapsedMinutes(90*time.Minute+59*time.Second, RoundDown, 1))
	assert.Equal(t, 1, ElapsedMinutes(-time.Minute, RoundNearest, 1))
}
