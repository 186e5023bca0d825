package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/config"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/db"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/engine"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/logging"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/metrics"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/migrate"
)

type Options struct {
	Workspace string
	Logger    *zap.Logger
	// Metrics is optional; the engine skips recording when nil.
	Metrics *metrics.Metrics
}

// Workspace is an opened, migrated workspace with its engine.
type Workspace struct {
	Dir    string
	Config *config.Config
	Engine engine.Engine
	conn   *sql.DB
}

// Open ensures the workspace exists, migrates the database and loads erp.yml,
// falling back to the built-in config when the file is absent.
func Open(ctx context.Context, opts Options) (*Workspace, error) {
	log := logging.Or(opts.Logger)
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg == nil {
		log.Debug("no erp.yml, using built-in config", zap.String("workspace", opts.Workspace))
		cfg = config.Default()
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	e := engine.New(conn, cfg)
	e.Log = log
	e.Metrics = opts.Metrics
	return &Workspace{Dir: opts.Workspace, Config: cfg, Engine: e, conn: conn}, nil
}

func (w *Workspace) Close() error {
	if w == nil || w.conn == nil {
		return nil
	}
	return w.conn.Close()
}
