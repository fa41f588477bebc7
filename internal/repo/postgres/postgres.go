package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/camwatch/camwatch/internal/domain"
	"github.com/camwatch/camwatch/internal/repo"
)

// Store persists probe results in postgres. It owns only the append surface
// and read views; retention and pruning live outside the monitor.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}
	s := &Store{pool: p}
	if err := s.ensureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS probe_results (
			id          BIGSERIAL PRIMARY KEY,
			endpoint    TEXT        NOT NULL,
			up          BOOLEAN     NOT NULL,
			latency_ms  BIGINT,
			message     TEXT        NOT NULL DEFAULT '',
			checked_at  TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS probe_results_endpoint_checked_at
			ON probe_results (endpoint, checked_at DESC);
	`)
	return err
}

func (s *Store) Append(ctx context.Context, r *domain.ProbeResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO probe_results (endpoint, up, latency_ms, message, checked_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.Endpoint, r.Up, r.LatencyMS, r.Message, r.CheckedAt)
	return err
}

func (s *Store) Latest(ctx context.Context, endpoint string) (*domain.ProbeResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT endpoint, up, latency_ms, message, checked_at
		 FROM probe_results WHERE endpoint = $1
		 ORDER BY checked_at DESC, id DESC LIMIT 1`, endpoint)
	var r domain.ProbeResult
	if err := row.Scan(&r.Endpoint, &r.Up, &r.LatencyMS, &r.Message, &r.CheckedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) History(ctx context.Context, endpoint string, limit int) ([]domain.ProbeResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT endpoint, up, latency_ms, message, checked_at
		 FROM probe_results WHERE endpoint = $1
		 ORDER BY checked_at DESC, id DESC LIMIT $2`, endpoint, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ProbeResult
	for rows.Next() {
		var r domain.ProbeResult
		if err := rows.Scan(&r.Endpoint, &r.Up, &r.LatencyMS, &r.Message, &r.CheckedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Snapshot(ctx context.Context) ([]repo.LatestRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (endpoint) endpoint, up, latency_ms, message, checked_at
		 FROM probe_results
		 ORDER BY endpoint, checked_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []repo.LatestRow
	for rows.Next() {
		var r repo.LatestRow
		if err := rows.Scan(&r.Endpoint, &r.Up, &r.LatencyMS, &r.Message, &r.CheckedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
