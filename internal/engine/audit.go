package engine

import (
	"context"

	"github.com/projetos-cell/tbo-dashboard-sub003/internal/audit"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/domain"
	"github.com/projetos-cell/tbo-dashboard-sub003/internal/repo"
)

func (e Engine) GetAuditLog(ctx context.Context, f audit.Filter) ([]domain.AuditLogEntry, error) {
	return audit.List(ctx, e.DB, f)
}

func (e Engine) ListEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, f)
}
