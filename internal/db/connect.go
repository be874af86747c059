package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:ltibridge.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/ltibridge?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS lti_tool_proxies (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL DEFAULT '',
  registration_url TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL DEFAULT 'pending',
  guid TEXT NOT NULL UNIQUE,
  secret TEXT NOT NULL,
  capabilities TEXT NOT NULL DEFAULT '',
  services TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS lti_tool_types (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL DEFAULT '',
  base_url TEXT NOT NULL DEFAULT '',
  tool_domain TEXT NOT NULL DEFAULT '',
  lti_version TEXT NOT NULL DEFAULT '1.0',
  state TEXT NOT NULL DEFAULT 'pending',
  consumer_key TEXT NOT NULL DEFAULT '',
  shared_secret TEXT NOT NULL DEFAULT '',
  secret_hash TEXT NOT NULL DEFAULT '',
  client_id TEXT NOT NULL DEFAULT '',
  public_key TEXT NOT NULL DEFAULT '',
  keyset_url TEXT NOT NULL DEFAULT '',
  key_type TEXT NOT NULL DEFAULT '',
  login_url TEXT NOT NULL DEFAULT '',
  deployment_id TEXT NOT NULL DEFAULT '',
  enabled_capabilities TEXT NOT NULL DEFAULT '',
  custom_parameters TEXT NOT NULL DEFAULT '',
  course_visible INTEGER NOT NULL DEFAULT 1,
  course_id INTEGER NOT NULL DEFAULT 0,
  proxy_id INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tool_types_client ON lti_tool_types(client_id);
CREATE INDEX IF NOT EXISTS idx_tool_types_consumer ON lti_tool_types(consumer_key);

CREATE TABLE IF NOT EXISTS lti_access_tokens (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tool_type_id INTEGER NOT NULL,
  token TEXT NOT NULL UNIQUE,
  scope TEXT NOT NULL DEFAULT '[]',
  created_at INTEGER NOT NULL,
  valid_until INTEGER NOT NULL,
  last_access INTEGER
);

CREATE TABLE IF NOT EXISTS lti_signing_keys (
  kid TEXT PRIMARY KEY,
  private_pem TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  not_before INTEGER NOT NULL,
  not_after INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS lti_results (
  sourcedid TEXT PRIMARY KEY,
  tool_type_id INTEGER NOT NULL DEFAULT 0,
  score REAL NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS lti_tool_proxies (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  registration_url TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL DEFAULT 'pending',
  guid TEXT NOT NULL UNIQUE,
  secret TEXT NOT NULL,
  capabilities TEXT NOT NULL DEFAULT '',
  services TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS lti_tool_types (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  base_url TEXT NOT NULL DEFAULT '',
  tool_domain TEXT NOT NULL DEFAULT '',
  lti_version TEXT NOT NULL DEFAULT '1.0',
  state TEXT NOT NULL DEFAULT 'pending',
  consumer_key TEXT NOT NULL DEFAULT '',
  shared_secret TEXT NOT NULL DEFAULT '',
  secret_hash TEXT NOT NULL DEFAULT '',
  client_id TEXT NOT NULL DEFAULT '',
  public_key TEXT NOT NULL DEFAULT '',
  keyset_url TEXT NOT NULL DEFAULT '',
  key_type TEXT NOT NULL DEFAULT '',
  login_url TEXT NOT NULL DEFAULT '',
  deployment_id TEXT NOT NULL DEFAULT '',
  enabled_capabilities TEXT NOT NULL DEFAULT '',
  custom_parameters TEXT NOT NULL DEFAULT '',
  course_visible BOOLEAN NOT NULL DEFAULT TRUE,
  course_id BIGINT NOT NULL DEFAULT 0,
  proxy_id BIGINT NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tool_types_client ON lti_tool_types(client_id);
CREATE INDEX IF NOT EXISTS idx_tool_types_consumer ON lti_tool_types(consumer_key);

CREATE TABLE IF NOT EXISTS lti_access_tokens (
  id BIGSERIAL PRIMARY KEY,
  tool_type_id BIGINT NOT NULL,
  token TEXT NOT NULL UNIQUE,
  scope TEXT NOT NULL DEFAULT '[]',
  created_at BIGINT NOT NULL,
  valid_until BIGINT NOT NULL,
  last_access BIGINT
);

CREATE TABLE IF NOT EXISTS lti_signing_keys (
  kid TEXT PRIMARY KEY,
  private_pem TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  not_before BIGINT NOT NULL,
  not_after BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS lti_results (
  sourcedid TEXT PRIMARY KEY,
  tool_type_id BIGINT NOT NULL DEFAULT 0,
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  updated_at BIGINT NOT NULL
);
`
