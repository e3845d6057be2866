package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"NiftyEdge/internal/domain/models"
	domrepo "NiftyEdge/internal/domain/repository"
	pkgch "NiftyEdge/pkg/clickhouse"
	applogger "NiftyEdge/pkg/logger"
)

const (
	barsTable   = "daily_bars"
	levelsTable = "level_interactions"
)

// BarSchema returns the idempotent DDL for the bar and level tables in database.
func BarSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.%s (
            seq UInt32,
            date Date,
            open Float64,
            high Float64,
            low Float64,
            close Float64,
            after_gap Bool DEFAULT false,
            ingested_at DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(ingested_at)
        ORDER BY seq`, database, barsTable),
		fmt.Sprintf(`ALTER TABLE %s.%s ADD COLUMN IF NOT EXISTS after_gap Bool DEFAULT false AFTER close`, database, barsTable),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.%s (
            run_id String,
            seq UInt32,
            date String,
            level LowCardinality(String),
            level_value Float64,
            open Float64,
            high Float64,
            low Float64,
            close Float64,
            first_touch Bool,
            broken Bool,
            broken_direction LowCardinality(String),
            after_break_retouch Nullable(Bool),
            break_success Nullable(Bool)
        ) ENGINE = MergeTree
        ORDER BY (run_id, seq, level)`, database, levelsTable),
	}
}

// ClickHouseBarStore keeps the loaded history and the level detail rows of each run.
// It doubles as a BarSource so the server can answer historical checks without the input file.
type ClickHouseBarStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewClickHouseBarStore(ch *pkgch.Client, l *applogger.Logger) *ClickHouseBarStore {
	return &ClickHouseBarStore{db: ch.DB(), database: ch.Database(), l: l}
}

func (s *ClickHouseBarStore) table(name string) string {
	return s.database + "." + name
}

func (s *ClickHouseBarStore) Describe() string {
	return "clickhouse:" + s.table(barsTable)
}

// SaveBars replaces the stored history with bars. Rows are keyed by Seq.
func (s *ClickHouseBarStore) SaveBars(ctx context.Context, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()
	table := s.table(barsTable)

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s", table)); err != nil {
		return s.fail("truncate bars", table, err)
	}
	err := s.batch(ctx, fmt.Sprintf("INSERT INTO %s (seq, date, open, high, low, close, after_gap)", table), len(bars), func(stmt *sql.Stmt, i int) error {
		b := bars[i]
		_, err := stmt.ExecContext(ctx, uint32(b.Seq), storedDate(b), b.Open, b.High, b.Low, b.Close, b.AfterGap)
		return err
	})
	if err != nil {
		return s.fail("insert bars", table, err)
	}

	if s.l != nil {
		s.l.Info("clickhouse save_bars ok",
			applogger.String("table", table),
			applogger.Int("rows", len(bars)),
			applogger.Duration("duration_ms", time.Since(start)))
	}
	return nil
}

func (s *ClickHouseBarStore) SaveLevels(ctx context.Context, runID string, levels []models.LevelInteraction) error {
	if len(levels) == 0 {
		return nil
	}
	start := time.Now()
	table := s.table(levelsTable)

	q := fmt.Sprintf(`INSERT INTO %s (run_id, seq, date, level, level_value, open, high, low, close,
        first_touch, broken, broken_direction, after_break_retouch, break_success)`, table)
	err := s.batch(ctx, q, len(levels), func(stmt *sql.Stmt, i int) error {
		lv := levels[i]
		_, err := stmt.ExecContext(ctx, runID, uint32(lv.Seq), lv.Date, string(lv.Level), lv.LevelValue,
			lv.Open, lv.High, lv.Low, lv.Close, lv.FirstTouch, lv.Broken, string(lv.BrokenDirection),
			lv.AfterBreakRetouch, lv.BreakSuccess)
		return err
	})
	if err != nil {
		return s.fail("insert levels", table, err)
	}

	if s.l != nil {
		s.l.Info("clickhouse save_levels ok",
			applogger.String("table", table),
			applogger.String("run_id", runID),
			applogger.Int("rows", len(levels)),
			applogger.Duration("duration_ms", time.Since(start)))
	}
	return nil
}

// Load returns the stored history ordered by Seq.
func (s *ClickHouseBarStore) Load(ctx context.Context) ([]models.Bar, error) {
	start := time.Now()
	table := s.table(barsTable)
	q := fmt.Sprintf(`
        SELECT seq, date, open, high, low, close, after_gap
        FROM %s FINAL
        ORDER BY seq ASC`, table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, s.fail("query bars", table, err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var (
			b   models.Bar
			seq uint32
		)
		if err := rows.Scan(&seq, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.AfterGap); err != nil {
			return nil, s.fail("scan bar", table, err)
		}
		b.Seq = int(seq)
		// undated inputs are stored on the epoch
		if b.Date.Unix() == 0 {
			b.Date = time.Time{}
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("rows", table, err)
	}

	if s.l != nil {
		s.l.Info("clickhouse load_bars ok",
			applogger.String("table", table),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)))
	}
	return out, nil
}

// storedDate maps undated bars onto the epoch, the smallest value a Date column holds.
func storedDate(b models.Bar) time.Time {
	if !b.HasDate() {
		return time.Unix(0, 0).UTC()
	}
	return b.Date
}

// batch runs n inserts through one prepared statement inside a transaction, which the
// driver sends as a single block.
func (s *ClickHouseBarStore) batch(ctx context.Context, q string, n int, exec func(*sql.Stmt, int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *ClickHouseBarStore) fail(op, table string, err error) error {
	if s.l != nil {
		s.l.Error("clickhouse "+op+" error",
			applogger.String("table", table),
			applogger.Error(err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ domrepo.BarStore = (*ClickHouseBarStore)(nil)
