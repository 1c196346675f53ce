// Package migrations creates the schema for MySQL and Postgres.
package migrations

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// column types per dialect, substituted into the DDL below
type dialect struct {
	timestamp string
	money     string
	boolean   string
	text      string
}

var dialects = map[string]dialect{
	"mysql": {timestamp: "DATETIME(6)", money: "DECIMAL(10,2)", boolean: "BOOLEAN", text: "TEXT"},
	"pgx":   {timestamp: "TIMESTAMPTZ", money: "NUMERIC(10,2)", boolean: "BOOLEAN", text: "TEXT"},
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tables (
		id VARCHAR(36) PRIMARY KEY,
		table_number INT NOT NULL UNIQUE,
		capacity INT NOT NULL DEFAULT 4,
		occupied {{bool}} NOT NULL DEFAULT FALSE,
		current_session_id VARCHAR(36) NULL,
		current_pin VARCHAR(8) NULL,
		is_active {{bool}} NOT NULL DEFAULT TRUE,
		version INT NOT NULL DEFAULT 0,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR(36) PRIMARY KEY,
		table_id VARCHAR(36) NOT NULL,
		status VARCHAR(16) NOT NULL,
		started_by_name VARCHAR(100) NOT NULL,
		served_by VARCHAR(36) NULL,
		final_total {{money}} NULL,
		payment_status VARCHAR(16) NOT NULL DEFAULT 'unpaid',
		payment_method VARCHAR(16) NULL,
		version INT NOT NULL DEFAULT 0,
		started_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		ended_at {{ts}} NULL
	)`,
	`CREATE TABLE IF NOT EXISTS menu_items (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		description {{text}} NOT NULL,
		category VARCHAR(50) NOT NULL,
		price {{money}} NOT NULL,
		is_available {{bool}} NOT NULL DEFAULT TRUE,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(36) PRIMARY KEY,
		session_id VARCHAR(36) NOT NULL,
		menu_item_id VARCHAR(36) NOT NULL,
		quantity INT NOT NULL,
		notes {{text}} NOT NULL,
		status VARCHAR(16) NOT NULL,
		split_bill_id VARCHAR(36) NULL,
		created_by_name VARCHAR(100) NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		placed_at {{ts}} NULL
	)`,
	`CREATE TABLE IF NOT EXISTS split_bills (
		id VARCHAR(36) PRIMARY KEY,
		session_id VARCHAR(36) NOT NULL,
		menu_item_id VARCHAR(36) NOT NULL,
		original_price {{money}} NOT NULL,
		split_price {{money}} NOT NULL,
		split_count INT NOT NULL,
		participants {{text}} NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at {{ts}} NOT NULL,
		resolved_at {{ts}} NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id VARCHAR(36) PRIMARY KEY,
		session_id VARCHAR(36) NULL,
		table_id VARCHAR(36) NULL,
		type VARCHAR(32) NOT NULL,
		status VARCHAR(16) NOT NULL,
		message {{text}} NOT NULL,
		metadata {{text}} NOT NULL,
		acknowledged_by VARCHAR(36) NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS staff (
		id VARCHAR(36) PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(100) NOT NULL,
		role VARCHAR(16) NOT NULL,
		password_hash VARCHAR(100) NOT NULL,
		is_active {{bool}} NOT NULL DEFAULT TRUE,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS waiter_requests (
		id VARCHAR(36) PRIMARY KEY,
		session_id VARCHAR(36) NOT NULL,
		table_id VARCHAR(36) NOT NULL,
		request_type VARCHAR(32) NOT NULL,
		message {{text}} NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payment_notifications (
		id VARCHAR(36) PRIMARY KEY,
		session_id VARCHAR(36) NOT NULL,
		table_id VARCHAR(36) NOT NULL,
		amount {{money}} NOT NULL,
		method VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id VARCHAR(36) PRIMARY KEY,
		action VARCHAR(64) NOT NULL,
		entity_type VARCHAR(32) NOT NULL,
		entity_id VARCHAR(36) NOT NULL,
		actor VARCHAR(100) NOT NULL,
		details {{text}} NOT NULL,
		created_at {{ts}} NOT NULL
	)`,
}

// indexes are created separately since MySQL has no CREATE INDEX IF NOT EXISTS
var indexes = []struct{ name, table, columns string }{
	{"idx_sessions_table_status", "sessions", "table_id, status"},
	{"idx_orders_session_status", "orders", "session_id, status"},
	{"idx_orders_status_created", "orders", "status, created_at"},
	{"idx_split_bills_session", "split_bills", "session_id, status"},
	{"idx_notifications_status", "notifications", "status, created_at"},
	{"idx_payment_notifications_session", "payment_notifications", "session_id, status"},
}

// Statements renders the DDL for driver.
func Statements(driver string) ([]string, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, errors.Errorf("no schema for driver %q", driver)
	}
	r := strings.NewReplacer("{{ts}}", d.timestamp, "{{money}}", d.money, "{{bool}}", d.boolean, "{{text}}", d.text)
	out := make([]string, 0, len(schema))
	for _, q := range schema {
		out = append(out, r.Replace(q))
	}
	return out, nil
}

// AutoMigrate creates every table that does not exist yet, retrying each
// statement while the database warms up.
func AutoMigrate(ctx context.Context, db *sqlx.DB, retries int) error {
	stmts, err := Statements(db.DriverName())
	if err != nil {
		return err
	}
	for _, q := range stmts {
		if err := execWithRetry(ctx, db, q, retries); err != nil {
			return err
		}
	}
	for _, idx := range indexes {
		if err := createIndex(ctx, db, idx.name, idx.table, idx.columns); err != nil {
			return err
		}
	}
	return nil
}

func execWithRetry(ctx context.Context, db *sqlx.DB, query string, retries int) error {
	_, err := db.ExecContext(ctx, query)
	for i := 0; err != nil && i < retries; i++ {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
		_, err = db.ExecContext(ctx, query)
	}
	return errors.Wrapf(err, "migration failed: %.60s", strings.TrimSpace(query))
}

func createIndex(ctx context.Context, db *sqlx.DB, name, table, columns string) error {
	if db.DriverName() == "pgx" {
		_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS `+name+` ON `+table+` (`+columns+`)`)
		return errors.Wrapf(err, "create index %s", name)
	}
	var n int
	err := db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?`,
		table, name)
	if err != nil {
		return errors.Wrapf(err, "look up index %s", name)
	}
	if n > 0 {
		return nil
	}
	_, err = db.ExecContext(ctx, `CREATE INDEX `+name+` ON `+table+` (`+columns+`)`)
	return errors.Wrapf(err, "create index %s", name)
}
