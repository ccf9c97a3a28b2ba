package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alysis/alysis/internal/models"
)

// Records is the Postgres-backed history. Rows are append-only: there
// is no update or delete path.
type Records struct {
	db *pgxpool.Pool
}

func NewRecords(db *pgxpool.Pool) *Records {
	return &Records{db: db}
}

const recordColumns = "id, app_id, version_id, input, output, raw_response, latency_ms, token_usage, status, error_message, caller_service, created_at"

func (r *Records) Insert(ctx context.Context, rec *models.ExecutionRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO execution_logs
		     (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.AppID, rec.VersionID, rec.Input, rec.Output, rec.RawResponse,
		rec.LatencyMs, rec.TokenUsage, rec.Status, rec.ErrorMessage, rec.CallerService, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert execution record: %w", err)
	}
	return nil
}

func (r *Records) GetByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM execution_logs WHERE id = $1", id)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Records) Recent(ctx context.Context, limit int) ([]models.ExecutionRecord, error) {
	return r.list(ctx,
		"SELECT "+recordColumns+" FROM execution_logs ORDER BY created_at DESC LIMIT $1", limit)
}

func (r *Records) ListForApp(ctx context.Context, appID string, limit, offset int) ([]models.ExecutionRecord, error) {
	return r.list(ctx,
		"SELECT "+recordColumns+" FROM execution_logs WHERE app_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		appID, limit, offset)
}

func (r *Records) list(ctx context.Context, query string, args ...any) ([]models.ExecutionRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list execution records: %w", err)
	}
	defer rows.Close()

	var records []models.ExecutionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (r *Records) StatsForApp(ctx context.Context, appID string) (*models.AppStats, error) {
	var stats models.AppStats
	err := r.db.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'success'),
		        count(*) FILTER (WHERE status = 'error'),
		        COALESCE(avg(latency_ms), 0)::int,
		        COALESCE(sum((token_usage->>'total')::int), 0)
		 FROM execution_logs
		 WHERE app_id = $1`, appID,
	).Scan(&stats.TotalExecutions, &stats.SuccessCount, &stats.ErrorCount,
		&stats.AvgLatencyMs, &stats.TotalTokens)
	if err != nil {
		return nil, fmt.Errorf("app stats: %w", err)
	}
	return &stats, nil
}

func (r *Records) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := r.db.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'success'),
		        COALESCE(avg(latency_ms), 0)::int,
		        COALESCE(sum((token_usage->>'total')::int), 0)
		 FROM execution_logs`,
	).Scan(&t.Executions, &t.Successes, &t.AvgLatencyMs, &t.TotalTokens)
	if err != nil {
		return Totals{}, fmt.Errorf("execution totals: %w", err)
	}
	return t, nil
}

func scanRecord(row pgx.Row) (*models.ExecutionRecord, error) {
	var rec models.ExecutionRecord
	err := row.Scan(&rec.ID, &rec.AppID, &rec.VersionID, &rec.Input, &rec.Output,
		&rec.RawResponse, &rec.LatencyMs, &rec.TokenUsage, &rec.Status,
		&rec.ErrorMessage, &rec.CallerService, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution record: %w", err)
	}
	return &rec, nil
}
