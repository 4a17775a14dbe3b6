package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/config"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/event"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/logger"
)

// Supported drivers, named as registered with database/sql.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite3"
)

// Sink receives recorded events outside the in-memory log.
type Sink interface {
	Write(ctx context.Context, e event.Event) error
	Close() error
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLSink writes events as rows of a single table.
type SQLSink struct {
	db     *sql.DB
	driver string
	table  string
	insert string
}

// BuildDSN constructs a DSN for postgres, mysql or sqlite3 (where db is the file path).
func BuildDSN(driver, user, pass, host string, port int, db string) string {
	switch driver {
	case Postgres:
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", user, pass, host, port, db)
	case SQLite:
		return db
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", user, pass, host, port, db)
	}
}

// Open connects using cfg and creates the table when missing.
func Open(ctx context.Context, cfg config.SinkCfg) (*SQLSink, error) {
	dsn := cfg.DSN
	if dsn == "" {
		host, port := cfg.Host, cfg.Port
		if host == "" {
			host = "127.0.0.1"
		}
		if port == 0 {
			port = defaultPort(cfg.Driver)
		}
		dsn = BuildDSN(cfg.Driver, cfg.User, cfg.Password, host, port, cfg.Database)
	}
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s sink: %w", cfg.Driver, err)
	}
	s, err := New(db, cfg.Driver, cfg.Table)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.L().Infow("event sink ready", "driver", cfg.Driver, "table", s.table)
	return s, nil
}

func defaultPort(driver string) int {
	if driver == Postgres {
		return 5432
	}
	return 3306
}

// New wraps an open database handle.
func New(db *sql.DB, driver, table string) (*SQLSink, error) {
	if table == "" {
		table = "sentinel_events"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid sink table name %q", config.ErrConfiguration, table)
	}
	var insert string
	switch driver {
	case Postgres:
		insert = fmt.Sprintf(`INSERT INTO %s (event_id, ts, endpoint_id, event_type, risk_level, description, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (event_id) DO NOTHING`, table)
	case MySQL:
		insert = fmt.Sprintf(`INSERT IGNORE INTO %s (event_id, ts, endpoint_id, event_type, risk_level, description, payload)
VALUES (?, ?, ?, ?, ?, ?, ?)`, table)
	case SQLite:
		insert = fmt.Sprintf(`INSERT OR IGNORE INTO %s (event_id, ts, endpoint_id, event_type, risk_level, description, payload)
VALUES (?, ?, ?, ?, ?, ?, ?)`, table)
	default:
		return nil, fmt.Errorf("%w: unsupported sink driver %q", config.ErrConfiguration, driver)
	}
	return &SQLSink{db: db, driver: driver, table: table, insert: insert}, nil
}

// EnsureSchema creates the event table if it does not exist.
func (s *SQLSink) EnsureSchema(ctx context.Context) error {
	var ddl string
	switch s.driver {
	case Postgres:
		ddl = `CREATE TABLE IF NOT EXISTS %s (
    event_id TEXT PRIMARY KEY,
    ts TIMESTAMPTZ NOT NULL,
    endpoint_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    description TEXT,
    payload JSONB NOT NULL
)`
	case MySQL:
		ddl = `CREATE TABLE IF NOT EXISTS %s (
    event_id VARCHAR(64) PRIMARY KEY,
    ts DATETIME(6) NOT NULL,
    endpoint_id VARCHAR(128) NOT NULL,
    event_type VARCHAR(32) NOT NULL,
    risk_level VARCHAR(16) NOT NULL,
    description TEXT,
    payload JSON NOT NULL
)`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS %s (
    event_id TEXT PRIMARY KEY,
    ts TIMESTAMP NOT NULL,
    endpoint_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    description TEXT,
    payload TEXT NOT NULL
)`
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(ddl, s.table)); err != nil {
		return fmt.Errorf("create sink table: %w", err)
	}
	return nil
}

// Write inserts e. Re-delivering an id already stored is a no-op.
func (s *SQLSink) Write(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = s.db.ExecContext(ctx, s.insert,
		e.ID, e.Timestamp.UTC(), e.EndpointID, string(e.Category), e.RiskLevel.String(), e.Description(), string(payload))
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLSink) Close() error {
	return s.db.Close()
}
