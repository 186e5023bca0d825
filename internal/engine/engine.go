package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/config"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/events"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/logging"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/metrics"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/workflow"
)

// CapacitySource yields a user's weekly capacity in minutes.
type CapacitySource interface {
	WeeklyCapacityMinutes(ctx context.Context, userID string) (int, error)
}

// RateLookup yields a user's hourly cost rate.
type RateLookup interface {
	HourlyRate(ctx context.Context, userID string) (float64, error)
}

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Machines *workflow.Registry
	Capacity CapacitySource
	Rates    RateLookup
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	Now      func() time.Time
	NewID    func() string
}

// New wires an engine over an open, migrated database. Capacity and rates
// default to the config; callers may replace them.
func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{},
		Config:   cfg,
		Machines: workflow.Default(),
		Capacity: cfg,
		Rates:    cfg,
		Log:      zap.NewNop(),
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Today is the engine clock in the configured timezone.
func (e Engine) Today() time.Time {
	return e.now().In(e.location())
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) log() *zap.Logger {
	return logging.Or(e.Log)
}

func (e Engine) machines() *workflow.Registry {
	if e.Machines != nil {
		return e.Machines
	}
	return workflow.Default()
}

func (e Engine) location() *time.Location {
	return e.Config.Location()
}

// emit appends an activity event stamped with the engine clock.
func (e Engine) emit(ctx context.Context, tx *sql.Tx, evtType, projectID, entityKind, entityID, actorID string, payload events.EventPayload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, evtType, projectID, entityKind, entityID, actorID, payload)
}

func (e Engine) refreshActiveTimers(ctx context.Context) {
	if e.Metrics == nil {
		return
	}
	n, err := e.Repo.CountTimers(ctx)
	if err != nil {
		e.log().Warn("count active timers", zap.Error(err))
		return
	}
	e.Metrics.SetActiveTimers(n)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
