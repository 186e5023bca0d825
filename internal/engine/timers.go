package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/events"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/timesheet"
)

// maxEntryMinutes is the longest single entry accepted from manual input.
const maxEntryMinutes = 24 * 60

type StartTimerOptions struct {
	UserID      string
	ProjectID   string
	TaskID      string
	Description string
}

// StartTimer opens the user's single running timer.
func (e Engine) StartTimer(ctx context.Context, opts StartTimerOptions) (domain.Timer, error) {
	if strings.TrimSpace(opts.UserID) == "" {
		return domain.Timer{}, invalid("user_id", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Timer{}, err
	}
	defer tx.Rollback()

	if _, err := e.requireProject(ctx, tx, opts.ProjectID); err != nil {
		return domain.Timer{}, err
	}
	if opts.TaskID != "" {
		if _, err := e.requireEntity(ctx, tx, domain.EntityTask, opts.TaskID); err != nil {
			return domain.Timer{}, err
		}
	}
	if running, err := e.Repo.GetTimer(ctx, tx, opts.UserID); err == nil {
		return domain.Timer{}, fmt.Errorf("%w: %s since %s", ErrTimerAlreadyRunning, opts.UserID, running.StartedAt)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Timer{}, err
	}
	t := domain.Timer{
		UserID:      opts.UserID,
		ProjectID:   opts.ProjectID,
		TaskID:      optionalString(opts.TaskID),
		StartedAt:   e.now().UTC().Format(time.RFC3339Nano),
		Description: opts.Description,
	}
	if err := e.Repo.InsertTimer(ctx, tx, t); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.Timer{}, fmt.Errorf("%w: %s", ErrTimerAlreadyRunning, opts.UserID)
		}
		return domain.Timer{}, err
	}
	if err := e.emit(ctx, tx, events.TimerStarted, opts.ProjectID, "timer", opts.UserID, opts.UserID, events.EventPayload{
		"task_id": opts.TaskID,
	}); err != nil {
		return domain.Timer{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Timer{}, err
	}
	e.refreshActiveTimers(ctx)
	e.log().Debug("timer started", zap.String("user", opts.UserID), zap.String("project", opts.ProjectID))
	return t, nil
}

// StopTimer closes the running timer and records its elapsed time as an entry
// dated to the day the timer started.
func (e Engine) StopTimer(ctx context.Context, userID string) (domain.TimeEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.TimeEntry{}, invalid("user_id", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTimer(ctx, tx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.TimeEntry{}, fmt.Errorf("%w: %s", ErrNoActiveTimer, userID)
	}
	if err != nil {
		return domain.TimeEntry{}, err
	}
	started, err := time.Parse(time.RFC3339Nano, t.StartedAt)
	if err != nil {
		return domain.TimeEntry{}, fmt.Errorf("timer for %s has bad started_at %q: %w", userID, t.StartedAt, err)
	}
	now := e.now()
	minutes := timesheet.ElapsedMinutes(now.Sub(started), e.rounding(), e.minMinutes())
	if minutes > maxEntryMinutes {
		e.log().Warn("timer ran longer than a day",
			zap.String("user", userID),
			zap.String("started_at", t.StartedAt),
			zap.Int("minutes", minutes))
	}
	entry := domain.TimeEntry{
		ID:              e.newID(),
		UserID:          userID,
		ProjectID:       t.ProjectID,
		TaskID:          t.TaskID,
		Date:            started.In(e.location()).Format(timesheet.DateLayout),
		DurationMinutes: minutes,
		Description:     t.Description,
		Source:          domain.SourceTimer,
		CreatedAt:       now.UTC().Format(time.RFC3339),
	}
	if err := e.Repo.DeleteTimer(ctx, tx, userID, t.StartedAt); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.TimeEntry{}, fmt.Errorf("%w: %s", ErrNoActiveTimer, userID)
		}
		return domain.TimeEntry{}, err
	}
	if err := e.Repo.InsertTimeEntry(ctx, tx, entry); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := e.emit(ctx, tx, events.TimerStopped, entry.ProjectID, "time_entry", entry.ID, userID, events.EventPayload{
		"minutes": minutes,
		"date":    entry.Date,
	}); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TimeEntry{}, err
	}
	e.Metrics.RecordEntry(string(domain.SourceTimer), minutes)
	e.refreshActiveTimers(ctx)
	e.log().Debug("timer stopped", zap.String("user", userID), zap.Int("minutes", minutes))
	return entry, nil
}

// ActiveTimer returns the user's running timer or nil.
func (e Engine) ActiveTimer(ctx context.Context, userID string) (*domain.Timer, error) {
	t, err := e.Repo.GetTimer(ctx, e.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (e Engine) rounding() timesheet.Rounding {
	if e.Config == nil || e.Config.Timer.Rounding == "" {
		return timesheet.RoundNearest
	}
	return timesheet.Rounding(e.Config.Timer.Rounding)
}

func (e Engine) minMinutes() int {
	if e.Config == nil || e.Config.Timer.MinMinutes < 1 {
		return 1
	}
	return e.Config.Timer.MinMinutes
}
