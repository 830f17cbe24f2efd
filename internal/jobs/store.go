// internal/jobs/store.go
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/cartpilot-io/cartpilot/internal/agent"
)

// execer is the slice of the pgx pool surface the store needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const runsSchema = `
CREATE TABLE IF NOT EXISTS checkout_runs (
	id                  UUID PRIMARY KEY,
	status              TEXT NOT NULL,
	progress            INT NOT NULL,
	success             BOOLEAN NOT NULL,
	product_id          TEXT NOT NULL DEFAULT '',
	matched_by_fallback BOOLEAN NOT NULL,
	applied_coupon      TEXT NOT NULL DEFAULT '',
	shipping_method     TEXT NOT NULL DEFAULT '',
	order_ref           TEXT NOT NULL DEFAULT '',
	error               TEXT NOT NULL DEFAULT '',
	logs                TEXT[] NOT NULL DEFAULT '{}',
	created_at          TIMESTAMPTZ NOT NULL,
	finished_at         TIMESTAMPTZ NOT NULL
)`

const insertRun = `
INSERT INTO checkout_runs
	(id, status, progress, success, product_id, matched_by_fallback,
	 applied_coupon, shipping_method, order_ref, error, logs, created_at,
	 finished_at)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// Store archives finished checkout runs to Postgres. The archive is an
// audit trail only: live status always comes from the registry.
type Store struct {
	db     execer
	logger *zap.Logger
}

// NewStore creates a Store on the given connection pool.
func NewStore(db execer, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger.Named("store")}
}

// EnsureSchema creates the runs table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, runsSchema); err != nil {
		return fmt.Errorf("ensuring checkout_runs schema: %w", err)
	}
	return nil
}

// SaveRun persists one finished job together with its run report.
func (s *Store) SaveRun(ctx context.Context, job Job, report *agent.RunReport) error {
	_, err := s.db.Exec(ctx, insertRun,
		job.ID,
		string(job.Status),
		job.Progress,
		report.Success,
		report.ProductID,
		report.MatchedByFallback,
		report.AppliedCoupon,
		report.ShippingMethod,
		report.OrderRef,
		job.Error,
		job.Logs,
		job.CreatedAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("archiving run %s: %w", job.ID, err)
	}
	s.logger.Debug("Run archived.", zap.String("job_id", job.ID))
	return nil
}
