// Package timesheet aggregates time entries into weekly views. It does no I/O.
package timesheet

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
)

// DateLayout is the calendar-date format used by entries and weeks.
const DateLayout = "2006-01-02"

type ProjectWeek struct {
	ProjectID string         `json:"project_id"`
	Days      map[string]int `json:"days"`
	Total     int            `json:"total"`
}

// Week is a Monday-to-Sunday timesheet. WeekTotal always equals the sum of
// DayTotals and the sum of project totals.
type Week struct {
	UserID    string             `json:"user_id"`
	WeekStart string             `json:"week_start" format:"date"`
	WeekEnd   string             `json:"week_end" format:"date"`
	Projects  []ProjectWeek      `json:"projects"`
	DayTotals map[string]int     `json:"day_totals"`
	WeekTotal int                `json:"week_total"`
	Entries   []domain.TimeEntry `json:"entries"`
}

type Utilization struct {
	UserID          string `json:"user_id"`
	WeekStart       string `json:"week_start" format:"date"`
	CapacityMinutes int    `json:"capacity_minutes"`
	TrackedMinutes  int    `json:"tracked_minutes"`
	UtilizationPct  int    `json:"utilization_pct"`
}

// ParseDate parses a YYYY-MM-DD date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return d, nil
}

// WeekStart normalizes any date to the Monday of its week.
func WeekStart(d time.Time) time.Time {
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// Days returns the seven dates of the week starting at monday.
func Days(monday time.Time) []string {
	out := make([]string, 7)
	for i := range out {
		out[i] = monday.AddDate(0, 0, i).Format(DateLayout)
	}
	return out
}

// Build groups entries by project and date. Entries outside the week or
// soft-deleted are ignored.
func Build(userID string, weekStart time.Time, entries []domain.TimeEntry) Week {
	monday := WeekStart(weekStart)
	days := Days(monday)
	w := Week{
		UserID:    userID,
		WeekStart: days[0],
		WeekEnd:   days[6],
		DayTotals: make(map[string]int, 7),
		Projects:  []ProjectWeek{},
		Entries:   []domain.TimeEntry{},
	}
	for _, d := range days {
		w.DayTotals[d] = 0
	}
	byProject := map[string]*ProjectWeek{}
	for _, te := range entries {
		if te.DeletedAt != nil {
			continue
		}
		if _, inWeek := w.DayTotals[te.Date]; !inWeek {
			continue
		}
		pw, ok := byProject[te.ProjectID]
		if !ok {
			pw = &ProjectWeek{ProjectID: te.ProjectID, Days: map[string]int{}}
			byProject[te.ProjectID] = pw
		}
		pw.Days[te.Date] += te.DurationMinutes
		pw.Total += te.DurationMinutes
		w.DayTotals[te.Date] += te.DurationMinutes
		w.WeekTotal += te.DurationMinutes
		w.Entries = append(w.Entries, te)
	}
	for _, pw := range byProject {
		w.Projects = append(w.Projects, *pw)
	}
	sort.Slice(w.Projects, func(i, j int) bool { return w.Projects[i].ProjectID < w.Projects[j].ProjectID })
	return w
}

// UtilizationPct is round(100*tracked/capacity), 0 when capacity is 0.
func UtilizationPct(tracked, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(tracked) / float64(capacity)))
}

// MissingDays lists workdays of the week with no minutes that are not after today.
func MissingDays(w Week, today time.Time, workdays []time.Weekday) []string {
	work := map[time.Weekday]bool{}
	for _, wd := range workdays {
		work[wd] = true
	}
	todayStr := today.Format(DateLayout)
	monday, err := ParseDate(w.WeekStart)
	if err != nil {
		return nil
	}
	out := []string{}
	for i := 0; i < 7; i++ {
		d := monday.AddDate(0, 0, i)
		ds := d.Format(DateLayout)
		if ds > todayStr {
			break
		}
		if !work[d.Weekday()] {
			continue
		}
		if w.DayTotals[ds] == 0 {
			out = append(out, ds)
		}
	}
	return out
}

// Rounding converts an elapsed duration to whole minutes.
type Rounding string

const (
	RoundNearest Rounding = "nearest"
	RoundUp      Rounding = "up"
	RoundDown    Rounding = "down"
)

// ElapsedMinutes rounds elapsed per policy and applies a floor of minMinutes.
func ElapsedMinutes(elapsed time.Duration, policy Rounding, minMinutes int) int {
	if elapsed < 0 {
		elapsed = 0
	}
	m := elapsed.Minutes()
	var minutes int
	switch policy {
	case RoundUp:
		minutes = int(math.Ceil(m))
	case RoundDown:
		minutes = int(math.Floor(m))
	default:
		minutes = int(math.Round(m))
	}
	if minutes < minMinutes {
		minutes = minMinutes
	}
	return minutes
}
