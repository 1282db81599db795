package results

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Pool wraps pgxpool.Pool.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates and pings a Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Migrate applies the embedded SQL files in lexical order. Every migration is
// idempotent.
func Migrate(ctx context.Context, pool *Pool) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

const pgErrUniqueViolation = "23505"

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool *Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

const insertQuery = `
	INSERT INTO trade_results (
		id, run_id, symbol, trading_day, slot, params_key,
		state, class, direction,
		entry_time, entry_price, stop_price, target_price, risk_points, rr,
		theoretical_r, realized_r, friction, friction_ratio, viable,
		mae, mfe, entry_delay, bars_held, exit_time
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9,
		$10, $11, $12, $13, $14, $15,
		$16, $17, $18, $19, $20,
		$21, $22, $23, $24, $25
	)
`

// InsertBulk implements Store. Rows without an ID get a fresh UUID.
func (s *PostgresStore) InsertBulk(ctx context.Context, rows []Record) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		batch.Queue(insertQuery,
			id, r.RunID, r.Symbol, r.TradingDay, r.Slot, r.ParamsKey,
			r.State, r.Class, r.Direction,
			r.EntryTime, r.EntryPrice, r.StopPrice, r.Target, r.RiskPoints, r.RR,
			r.TheoreticalR, r.RealizedR, r.Friction, r.FrictionRatio, r.Viable,
			r.MAE, r.MFE, r.EntryDelay, r.BarsHeld, r.ExitTime,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert trade results: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListByRun implements Store.
func (s *PostgresStore) ListByRun(ctx context.Context, runID string) ([]Record, error) {
	query := `
		SELECT id::text, run_id, symbol, trading_day, slot, params_key,
			state, class, direction,
			entry_time, entry_price, stop_price, target_price, risk_points, rr,
			theoretical_r, realized_r, friction, friction_ratio, viable,
			mae, mfe, entry_delay, bars_held, exit_time
		FROM trade_results
		WHERE run_id = $1
		ORDER BY trading_day, slot, symbol, params_key
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query trade results: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		err := rows.Scan(
			&r.ID, &r.RunID, &r.Symbol, &r.TradingDay, &r.Slot, &r.ParamsKey,
			&r.State, &r.Class, &r.Direction,
			&r.EntryTime, &r.EntryPrice, &r.StopPrice, &r.Target, &r.RiskPoints, &r.RR,
			&r.TheoreticalR, &r.RealizedR, &r.Friction, &r.FrictionRatio, &r.Viable,
			&r.MAE, &r.MFE, &r.EntryDelay, &r.BarsHeld, &r.ExitTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade results: %w", err)
	}
	return out, nil
}
