package engine

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/timesheet"
)

const defaultOverBudgetThreshold = 1.2

// GetWeeklyTimesheet groups a user's entries for the week containing weekStart.
func (e Engine) GetWeeklyTimesheet(ctx context.Context, userID string, weekStart time.Time) (timesheet.Week, error) {
	monday := timesheet.WeekStart(weekStart)
	days := timesheet.Days(monday)
	entries, err := e.Repo.ListTimeEntries(ctx, repo.TimeEntryFilters{UserID: userID, From: days[0], To: days[6]})
	if err != nil {
		return timesheet.Week{}, err
	}
	return timesheet.Build(userID, monday, entries), nil
}

func (e Engine) GetWeeklyUtilization(ctx context.Context, userID string, weekStart time.Time) (timesheet.Utilization, error) {
	w, err := e.GetWeeklyTimesheet(ctx, userID, weekStart)
	if err != nil {
		return timesheet.Utilization{}, err
	}
	capacity := 0
	if e.Capacity != nil {
		if capacity, err = e.Capacity.WeeklyCapacityMinutes(ctx, userID); err != nil {
			return timesheet.Utilization{}, err
		}
	}
	return timesheet.Utilization{
		UserID:          userID,
		WeekStart:       w.WeekStart,
		CapacityMinutes: capacity,
		TrackedMinutes:  w.WeekTotal,
		UtilizationPct:  timesheet.UtilizationPct(w.WeekTotal, capacity),
	}, nil
}

// GetMissingDayAlerts lists workdays up to today with nothing tracked.
func (e Engine) GetMissingDayAlerts(ctx context.Context, userID string, weekStart time.Time) ([]string, error) {
	w, err := e.GetWeeklyTimesheet(ctx, userID, weekStart)
	if err != nil {
		return nil, err
	}
	today := e.now().In(e.location())
	return timesheet.MissingDays(w, today, e.Config.Workdays()), nil
}

type CostMetrics struct {
	ProjectID      string  `json:"project_id"`
	TrackedMinutes int     `json:"tracked_minutes"`
	TrackedCost    float64 `json:"tracked_cost"`
	PlannedMinutes int     `json:"planned_minutes"`
	PlannedCost    float64 `json:"planned_cost"`
	Revenue        float64 `json:"revenue"`
	MarginReal     float64 `json:"margin_real"`
	IsOverBudget   bool    `json:"is_over_budget"`
}

// GetProjectCostMetrics rolls tracked time into cost and compares it with the
// project's planned cost and revenue. An unknown project yields zero metrics.
func (e Engine) GetProjectCostMetrics(ctx context.Context, projectID string) (CostMetrics, error) {
	out := CostMetrics{ProjectID: projectID}
	p, err := e.Repo.GetEntity(ctx, projectID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && p.Type != domain.EntityProject) {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	byUser, err := e.Repo.MinutesByUser(ctx, projectID)
	if err != nil {
		return out, err
	}
	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)
	var cost float64
	for _, u := range users {
		minutes := byUser[u]
		out.TrackedMinutes += minutes
		rate := 0.0
		if e.Rates != nil {
			if rate, err = e.Rates.HourlyRate(ctx, u); err != nil {
				return CostMetrics{ProjectID: projectID}, err
			}
		}
		cost += float64(minutes) / 60 * rate
	}
	out.TrackedCost = roundTo(cost, 2)
	if v, ok := p.Number("planned_cost"); ok {
		out.PlannedCost = roundTo(v, 2)
	}
	if v, ok := p.Number("planned_minutes"); ok {
		out.PlannedMinutes = int(math.Round(v))
	}
	if v, ok := p.Number("revenue"); ok {
		out.Revenue = roundTo(v, 2)
	}
	if out.Revenue > 0 {
		out.MarginReal = roundTo(100*(out.Revenue-out.TrackedCost)/out.Revenue, 2)
	}
	threshold := defaultOverBudgetThreshold
	if e.Config != nil && e.Config.Costs.OverBudgetThreshold > 0 {
		threshold = e.Config.Costs.OverBudgetThreshold
	}
	out.IsOverBudget = out.PlannedCost > 0 && out.TrackedCost > out.PlannedCost*threshold
	return out, nil
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
