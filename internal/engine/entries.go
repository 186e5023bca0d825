package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/events"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/timesheet"
)

type ManualEntryOptions struct {
	UserID          string
	ProjectID       string
	TaskID          string
	Date            string
	DurationMinutes int
	Description     string
}

func (e Engine) AddManualEntry(ctx context.Context, opts ManualEntryOptions) (domain.TimeEntry, error) {
	switch {
	case strings.TrimSpace(opts.UserID) == "":
		return domain.TimeEntry{}, invalid("user_id", "is required")
	case opts.DurationMinutes <= 0:
		return domain.TimeEntry{}, invalid("duration_minutes", "must be positive")
	case opts.DurationMinutes > maxEntryMinutes:
		return domain.TimeEntry{}, invalid("duration_minutes", fmt.Sprintf("must not exceed %d", maxEntryMinutes))
	}
	if _, err := timesheet.ParseDate(opts.Date); err != nil {
		return domain.TimeEntry{}, invalid("date", "must be YYYY-MM-DD")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	defer tx.Rollback()

	if _, err := e.requireProject(ctx, tx, opts.ProjectID); err != nil {
		if errors.Is(err, ErrEntityNotFound) {
			return domain.TimeEntry{}, invalid("project_id", "does not resolve to a project")
		}
		return domain.TimeEntry{}, err
	}
	if opts.TaskID != "" {
		if _, err := e.requireEntity(ctx, tx, domain.EntityTask, opts.TaskID); err != nil {
			if errors.Is(err, ErrEntityNotFound) {
				return domain.TimeEntry{}, invalid("task_id", "does not resolve to a task")
			}
			return domain.TimeEntry{}, err
		}
	}
	entry := domain.TimeEntry{
		ID:              e.newID(),
		UserID:          opts.UserID,
		ProjectID:       opts.ProjectID,
		TaskID:          optionalString(opts.TaskID),
		Date:            opts.Date,
		DurationMinutes: opts.DurationMinutes,
		Description:     opts.Description,
		Source:          domain.SourceManual,
		CreatedAt:       e.timestamp(),
	}
	if err := e.Repo.InsertTimeEntry(ctx, tx, entry); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := e.emit(ctx, tx, events.EntryAdded, entry.ProjectID, "time_entry", entry.ID, opts.UserID, events.EventPayload{
		"minutes": entry.DurationMinutes,
		"date":    entry.Date,
	}); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TimeEntry{}, err
	}
	e.Metrics.RecordEntry(string(domain.SourceManual), entry.DurationMinutes)
	return entry, nil
}

// DeleteEntry soft-deletes an entry. Running timers are untouched.
func (e Engine) DeleteEntry(ctx context.Context, entryID, actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return invalid("actor_id", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	entry, err := e.Repo.GetTimeEntry(ctx, tx, entryID)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: time entry %s", ErrEntityNotFound, entryID)
	}
	if err != nil {
		return err
	}
	if err := e.Repo.SoftDeleteTimeEntry(ctx, tx, entryID, e.timestamp()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: time entry %s", ErrEntityNotFound, entryID)
		}
		return err
	}
	if err := e.emit(ctx, tx, events.EntryDeleted, entry.ProjectID, "time_entry", entryID, actorID, events.EventPayload{
		"minutes": entry.DurationMinutes,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ListEntries(ctx context.Context, f repo.TimeEntryFilters) ([]domain.TimeEntry, error) {
	for field, v := range map[string]string{"from": f.From, "to": f.To} {
		if v == "" {
			continue
		}
		if _, err := timesheet.ParseDate(v); err != nil {
			return nil, invalid(field, "must be YYYY-MM-DD")
		}
	}
	return e.Repo.ListTimeEntries(ctx, f)
}
