package dataset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ravexina/NCBI-fasta-extractor/internal/config"
	"github.com/ravexina/NCBI-fasta-extractor/internal/logger"
	"github.com/ravexina/NCBI-fasta-extractor/internal/models"
)

// ErrMissingDSN is returned when the mirror is opened without a DSN.
var ErrMissingDSN = errors.New("postgres dsn is empty")

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresMirror inserts records into a Postgres table keyed by accession.
type PostgresMirror struct {
	db    execer
	close func()
	table string
}

// OpenPostgresMirror connects, creates the table when missing and returns the mirror.
func OpenPostgresMirror(ctx context.Context, cfg config.PostgresConfig) (*PostgresMirror, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, ErrMissingDSN
	}

	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 2
	}

	pcfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	m := &PostgresMirror{db: pool, close: pool.Close, table: quoteTable(cfg.Table)}
	if err := m.EnsureSchema(ctx); err != nil {
		pool.Close()

		return nil, err
	}

	return m, nil
}

// EnsureSchema creates the mirror table if it does not exist.
func (m *PostgresMirror) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.Exec(ctx, createTableSQL(m.table)); err != nil {
		return fmt.Errorf("failed to create mirror table: %w", err)
	}

	return nil
}

// Append inserts rec unless a row with the same key exists.
func (m *PostgresMirror) Append(ctx context.Context, rec models.NormalizedRecord) error {
	_, err := m.db.Exec(ctx, insertSQL(m.table),
		rec.Key, rec.Strain, rec.Organism, rec.IsolationSource, rec.Country, rec.Year)
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", rec.Key, err)
	}

	return nil
}

// Close releases the pool.
func (m *PostgresMirror) Close() {
	if m.close != nil {
		m.close()
	}
}

// quoteTable quotes a possibly schema-qualified table name.
func quoteTable(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

func createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
		key TEXT PRIMARY KEY,
		strain TEXT NOT NULL,
		organism TEXT NOT NULL,
		isolation_source TEXT NOT NULL,
		country TEXT NOT NULL,
		year TEXT NOT NULL,
		inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
}

func insertSQL(table string) string {
	return `INSERT INTO ` + table + `
		(key, strain, organism, isolation_source, country, year)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (key) DO NOTHING`
}

// Mirrored writes to a primary sink and then best-effort to a mirror.
// Only primary failures are returned.
type Mirrored struct {
	primary Sink
	mirror  Sink
	logger  *logger.Logger
}

// NewMirrored creates a mirrored sink. A nil mirror makes it a pass-through.
func NewMirrored(primary, mirror Sink, l *logger.Logger) *Mirrored {
	return &Mirrored{primary: primary, mirror: mirror, logger: l}
}

// Append writes rec to the primary, then to the mirror.
func (m *Mirrored) Append(ctx context.Context, rec models.NormalizedRecord) error {
	if err := m.primary.Append(ctx, rec); err != nil {
		return err
	}

	if m.mirror == nil {
		return nil
	}

	if err := m.mirror.Append(ctx, rec); err != nil {
		m.logger.Warn("Mirror append failed", "key", rec.Key, "error", err)
	}

	return nil
}
