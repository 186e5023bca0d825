package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/audit"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/engine"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/timesheet"
)

func (h handlers) registerTimers(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-timer",
		Method:        http.MethodPost,
		Path:          "/timers",
		Summary:       "Start a timer",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body StartTimerRequest `json:"body"`
	}) (*struct {
		Body domain.Timer `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := h.e.StartTimer(ctx, engine.StartTimerOptions{
			UserID:      orDefault(input.Body.UserID, actorID),
			ProjectID:   input.Body.ProjectID,
			TaskID:      input.Body.TaskID,
			Description: input.Body.Description,
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body domain.Timer `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stop-timer",
		Method:      http.MethodPost,
		Path:        "/timers/stop",
		Summary:     "Stop the running timer",
		Errors:      []int{http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body StopTimerRequest `json:"body" required:"false"`
	}) (*struct {
		Body domain.TimeEntry `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := h.e.StopTimer(ctx, orDefault(input.Body.UserID, actorID))
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body domain.TimeEntry `json:"body"`
		}{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-timer",
		Method:      http.MethodGet,
		Path:        "/timers/{user_id}",
		Summary:     "Get a user's running timer",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*struct {
		Body domain.Timer `json:"body"`
	}, error) {
		t, err := h.e.ActiveTimer(ctx, input.UserID)
		if err != nil {
			return nil, h.handleError(err)
		}
		if t == nil {
			return nil, newAPIError(http.StatusNotFound, "no_active_timer", "no active timer for "+input.UserID, nil)
		}
		return &struct {
			Body domain.Timer `json:"body"`
		}{Body: *t}, nil
	})
}

func (h handlers) registerEntries(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-time-entry",
		Method:        http.MethodPost,
		Path:          "/time-entries",
		Summary:       "Add a manual time entry",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body AddEntryRequest `json:"body"`
	}) (*struct {
		Body domain.TimeEntry `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := h.e.AddManualEntry(ctx, engine.ManualEntryOptions{
			UserID:          orDefault(input.Body.UserID, actorID),
			ProjectID:       input.Body.ProjectID,
			TaskID:          input.Body.TaskID,
			Date:            input.Body.Date,
			DurationMinutes: input.Body.DurationMinutes,
			Description:     input.Body.Description,
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body domain.TimeEntry `json:"body"`
		}{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-time-entries",
		Method:      http.MethodGet,
		Path:        "/time-entries",
		Summary:     "List time entries",
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		UserID         string `query:"user_id"`
		ProjectID      string `query:"project_id"`
		TaskID         string `query:"task_id"`
		From           string `query:"from"`
		To             string `query:"to"`
		IncludeDeleted bool   `query:"include_deleted"`
		Limit          int    `query:"limit"`
	}) (*struct {
		Body []domain.TimeEntry `json:"body"`
	}, error) {
		items, err := h.e.ListEntries(ctx, repo.TimeEntryFilters{
			UserID:         input.UserID,
			ProjectID:      input.ProjectID,
			TaskID:         input.TaskID,
			From:           input.From,
			To:             input.To,
			IncludeDeleted: input.IncludeDeleted,
			Limit:          input.Limit,
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body []domain.TimeEntry `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-time-entry",
		Method:        http.MethodDelete,
		Path:          "/time-entries/{id}",
		Summary:       "Delete a time entry",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.e.DeleteEntry(ctx, input.ID, actorID); err != nil {
			return nil, h.handleError(err)
		}
		return &struct{}{}, nil
	})
}

type weekInput struct {
	UserID string `path:"user_id"`
	Week   string `query:"week" doc:"Any date in the week, YYYY-MM-DD. Defaults to the current week."`
}

func (h handlers) registerReports(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "weekly-timesheet",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/timesheet",
		Summary:     "Weekly timesheet",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *weekInput) (*struct {
		Body timesheet.Week `json:"body"`
	}, error) {
		week, perr := weekParam(h.e, input.Week)
		if perr != nil {
			return nil, perr
		}
		w, err := h.e.GetWeeklyTimesheet(ctx, input.UserID, week)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body timesheet.Week `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "weekly-utilization",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/utilization",
		Summary:     "Weekly utilization against capacity",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *weekInput) (*struct {
		Body timesheet.Utilization `json:"body"`
	}, error) {
		week, perr := weekParam(h.e, input.Week)
		if perr != nil {
			return nil, perr
		}
		u, err := h.e.GetWeeklyUtilization(ctx, input.UserID, week)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body timesheet.Utilization `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "missing-days",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/missing-days",
		Summary:     "Workdays without tracked time",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *weekInput) (*struct {
		Body MissingDaysResponse `json:"body"`
	}, error) {
		week, perr := weekParam(h.e, input.Week)
		if perr != nil {
			return nil, perr
		}
		days, err := h.e.GetMissingDayAlerts(ctx, input.UserID, week)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body MissingDaysResponse `json:"body"`
		}{Body: MissingDaysResponse{
			UserID:    input.UserID,
			WeekStart: week.Format(timesheet.DateLayout),
			Days:      nonNilSlice(days),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-costs",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/costs",
		Summary:     "Project cost rollup",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body engine.CostMetrics `json:"body"`
	}, error) {
		m, err := h.e.GetProjectCostMetrics(ctx, input.ProjectID)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body engine.CostMetrics `json:"body"`
		}{Body: m}, nil
	})
}

func (h handlers) registerActivity(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "audit-log",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "Status change audit log",
	}, func(ctx context.Context, input *struct {
		EntityType string `query:"entity_type"`
		EntityID   string `query:"entity_id"`
		ActorID    string `query:"actor_id"`
		After      int64  `query:"after"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body []domain.AuditLogEntry `json:"body"`
	}, error) {
		items, err := h.e.GetAuditLog(ctx, audit.Filter{
			EntityType: domain.EntityType(input.EntityType),
			EntityID:   input.EntityID,
			ActorID:    input.ActorID,
			After:      input.After,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body []domain.AuditLogEntry `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent activity",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `query:"project_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := h.e.ListEvents(ctx, repo.EventFilters{
			ProjectID:  input.ProjectID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Before:     cursorID,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		resp := paginatedEvents{Items: []domain.Event{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		resp.Items = append(resp.Items, items...)
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}
