package mariadb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"charter-reporter/internal/config"
)

// Source names the two external report databases.
type Source string

const (
	SourceMoodle Source = "Moodle"
	SourceWoo    Source = "Woo"
)

// readOnlyStatement is issued on every session before the transaction starts,
// so a bug in query composition can never write to either source.
const readOnlyStatement = "SET TRANSACTION READ ONLY"

// Factory opens scoped, read-only connections to the external MariaDB
// sources. Each logical source gets its own pool, but callers always work on
// a dedicated session checked out for the duration of one query.
type Factory struct {
	moodle *sourceDB
	woo    *sourceDB
}

type sourceDB struct {
	db     *sql.DB
	prefix string
}

// NewFactory creates a factory from the two source configurations.
// Connections are opened lazily on first use.
func NewFactory(moodle, woo *config.SourceConfig) (*Factory, error) {
	m, err := openSource(moodle, "")
	if err != nil {
		return nil, fmt.Errorf("failed to open Moodle source: %w", err)
	}
	w, err := openSource(woo, "wp_")
	if err != nil {
		return nil, fmt.Errorf("failed to open Woo source: %w", err)
	}
	return &Factory{moodle: m, woo: w}, nil
}

func openSource(cfg *config.SourceConfig, fallbackPrefix string) (*sourceDB, error) {
	dsnCfg := mysql.NewConfig()
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	dsnCfg.User = cfg.User
	dsnCfg.Passwd = cfg.Password
	dsnCfg.DBName = cfg.Name
	dsnCfg.ParseTime = true
	dsnCfg.Loc = time.UTC
	dsnCfg.Timeout = cfg.Timeout
	dsnCfg.ReadTimeout = cfg.Timeout

	db, err := sql.Open("mysql", dsnCfg.FormatDSN())
	if err != nil {
		return nil, err
	}

	// Report queries are bursty and short-lived; keep the pool small.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &sourceDB{
		db:     db,
		prefix: NormalizePrefix(cfg.TablePrefix, fallbackPrefix),
	}, nil
}

// Prefix returns the normalized table prefix for the given source.
func (f *Factory) Prefix(source Source) string {
	return f.get(source).prefix
}

// Close releases both source pools.
func (f *Factory) Close() error {
	merr := f.moodle.db.Close()
	if werr := f.woo.db.Close(); werr != nil && merr == nil {
		merr = werr
	}
	return merr
}

func (f *Factory) get(source Source) *sourceDB {
	if source == SourceWoo {
		return f.woo
	}
	return f.moodle
}

// WithReadOnlyTx checks out a dedicated session for the source, marks it
// read-only, begins a transaction, and runs fn. The transaction is committed
// when fn returns nil, otherwise rolled back with the original error
// propagated uncommitted.
func (f *Factory) WithReadOnlyTx(ctx context.Context, source Source, fn func(tx *sql.Tx) error) error {
	conn, err := f.get(source).db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", source, err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, readOnlyStatement); err != nil {
		return fmt.Errorf("failed to mark %s session read-only: %w", source, err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin %s transaction: %w", source, err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// NormalizePrefix applies the fallback when no prefix is configured and
// guarantees a trailing underscore, e.g. "wpbh" -> "wpbh_" so that
// "wpbh_" + "posts" forms a valid table name.
func NormalizePrefix(configuredPrefix, fallback string) string {
	prefix := strings.TrimSpace(configuredPrefix)
	if prefix == "" {
		prefix = fallback
	}
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}
