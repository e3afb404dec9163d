package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradepost-erp/tradepost/internal/observability"
)

// DriftFinding describes one inconsistency between the product ledger and the
// GRN store.
type DriftFinding struct {
	Kind     string
	EntityID int64
	Detail   string
}

// DriftScanner inspects persisted state for ledger drift.
type DriftScanner interface {
	OrphanedCost(ctx context.Context) ([]DriftFinding, error)
	DivergentTotals(ctx context.Context) ([]DriftFinding, error)
}

// LedgerAuditJob runs the nightly drift scan. It only reports; nothing is
// corrected automatically.
type LedgerAuditJob struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Scanner DriftScanner
}

// NewLedgerAuditJob initialises the audit handler backed by PostgreSQL.
func NewLedgerAuditJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) *LedgerAuditJob {
	return &LedgerAuditJob{Logger: logger, Metrics: metrics, Scanner: &pgDriftScanner{pool: pool}}
}

// Handle executes the drift scan.
func (j *LedgerAuditJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Scanner == nil {
		return errors.New("ledger audit: handler not configured")
	}
	var payload LedgerAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	logger := j.logger()
	logger.Info("starting ledger audit scan")

	orphaned, err := j.Scanner.OrphanedCost(ctx)
	if err != nil {
		logger.Error("orphaned cost scan failed", slog.Any("error", err))
		return err
	}
	divergent, err := j.Scanner.DivergentTotals(ctx)
	if err != nil {
		logger.Error("divergent totals scan failed", slog.Any("error", err))
		return err
	}

	findings := append(orphaned, divergent...)
	for _, f := range findings {
		logger.Warn("ledger drift detected",
			slog.String("kind", f.Kind),
			slog.Int64("entity_id", f.EntityID),
			slog.String("detail", f.Detail),
		)
	}
	if j.Metrics != nil {
		j.Metrics.SetLedgerDrift(len(findings))
	}

	logger.Info("completed ledger audit scan",
		slog.Int("findings", len(findings)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *LedgerAuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

type pgDriftScanner struct {
	pool *pgxpool.Pool
}

// OrphanedCost finds products carrying cost basis with zero quantity. The
// clamp can legitimately leave such rows behind, so they are findings, not
// failures.
func (s *pgDriftScanner) OrphanedCost(ctx context.Context) ([]DriftFinding, error) {
	if s.pool == nil {
		return nil, errors.New("ledger audit: pool not configured")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, total_cost::text FROM products
		WHERE available_qty = 0 AND total_cost > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []DriftFinding
	for rows.Next() {
		var (
			id   int64
			cost string
		)
		if err := rows.Scan(&id, &cost); err != nil {
			return nil, err
		}
		findings = append(findings, DriftFinding{
			Kind:     "orphaned_cost",
			EntityID: id,
			Detail:   "zero quantity with total cost " + cost,
		})
	}
	return findings, rows.Err()
}

// DivergentTotals finds GRN headers whose total no longer matches the sum of
// their items.
func (s *pgDriftScanner) DivergentTotals(ctx context.Context) ([]DriftFinding, error) {
	if s.pool == nil {
		return nil, errors.New("ledger audit: pool not configured")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT g.id, g.total_amount::text, COALESCE(SUM(i.total_cost), 0)::text
		FROM grns g
		LEFT JOIN grn_items i ON i.grn_id = g.id
		GROUP BY g.id, g.total_amount
		HAVING g.total_amount <> COALESCE(SUM(i.total_cost), 0)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []DriftFinding
	for rows.Next() {
		var (
			id          int64
			headerTotal string
			itemTotal   string
		)
		if err := rows.Scan(&id, &headerTotal, &itemTotal); err != nil {
			return nil, err
		}
		findings = append(findings, DriftFinding{
			Kind:     "divergent_total",
			EntityID: id,
			Detail:   "header total " + headerTotal + " vs item sum " + itemTotal,
		})
	}
	return findings, rows.Err()
}
