package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/pkg/logger"
)

const schema = `
	CREATE TABLE IF NOT EXISTS rate_snapshots (
		id         UUID PRIMARY KEY,
		kind       TEXT NOT NULL,
		source     TEXT NOT NULL,
		rates      JSONB NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS rate_snapshots_kind_fetched_at_idx
		ON rate_snapshots (kind, fetched_at DESC);
`

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type HistoryRepository struct {
	db  Querier
	log *logger.Logger
}

func NewHistoryRepository(db Querier, log *logger.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log,
	}
}

func (r *HistoryRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create rate_snapshots: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Record(ctx context.Context, snapshot *model.Snapshot) error {
	rates, err := json.Marshal(snapshot.Rates)
	if err != nil {
		return fmt.Errorf("failed to encode rates: %w", err)
	}

	query := `
		INSERT INTO rate_snapshots (id, kind, source, rates, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.db.Exec(ctx, query,
		snapshot.ID,
		string(snapshot.Kind),
		snapshot.Source,
		rates,
		snapshot.FetchedAt,
	)
	if err != nil {
		r.log.Error("Failed to save snapshot", "kind", snapshot.Kind, "error", err)
		return err
	}

	return nil
}

func (r *HistoryRepository) List(ctx context.Context, kind model.RateKind, limit int) ([]model.Snapshot, error) {
	query := `
		SELECT id::text, kind, source, rates, fetched_at
		FROM rate_snapshots
		WHERE kind = $1
		ORDER BY fetched_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, string(kind), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]model.Snapshot, 0, limit)
	for rows.Next() {
		var (
			s     model.Snapshot
			k     string
			rates []byte
		)
		if err := rows.Scan(&s.ID, &k, &s.Source, &rates, &s.FetchedAt); err != nil {
			r.log.Error("Failed to scan snapshot", "error", err)
			continue
		}
		if err := json.Unmarshal(rates, &s.Rates); err != nil {
			r.log.Error("Failed to decode snapshot rates", "id", s.ID, "error", err)
			continue
		}
		s.Kind = model.RateKind(k)
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}
