package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"go.uber.org/zap"
)

const (
	tableShipments = "tms_shipments"
	tableInvoices  = "invoices"
	tableLines     = "invoice_line_items"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS tms_shipments (
		id BIGSERIAL PRIMARY KEY,
		ld_num TEXT NOT NULL DEFAULT '',
		so_num TEXT NOT NULL DEFAULT '',
		shipment_number TEXT NOT NULL DEFAULT '',
		chassis_number TEXT NOT NULL DEFAULT '',
		container_number TEXT NOT NULL DEFAULT '',
		chassis_key TEXT NOT NULL DEFAULT '',
		container_key TEXT NOT NULL DEFAULT '',
		pickup_actual_date DATE,
		delivery_actual_date DATE,
		span_start DATE,
		span_end DATE,
		carrier_name TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS tms_shipments_chassis_key_idx ON tms_shipments (chassis_key, span_start, span_end)`,
	`CREATE INDEX IF NOT EXISTS tms_shipments_container_key_idx ON tms_shipments (container_key, span_start, span_end)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		vendor TEXT NOT NULL,
		invoice_id TEXT NOT NULL,
		account_code TEXT NOT NULL DEFAULT '',
		billing_date TEXT NOT NULL DEFAULT '',
		due_date TEXT NOT NULL DEFAULT '',
		currency_code TEXT NOT NULL DEFAULT '',
		amount_due NUMERIC NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'draft',
		validation_status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (vendor, invoice_id)
	)`,
	`CREATE TABLE IF NOT EXISTS invoice_line_items (
		vendor TEXT NOT NULL,
		invoice_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		line_invoice_number TEXT NOT NULL DEFAULT '',
		chassis_identifier TEXT NOT NULL DEFAULT '',
		container_out_identifier TEXT NOT NULL DEFAULT '',
		container_in_identifier TEXT NOT NULL DEFAULT '',
		date_out TEXT NOT NULL DEFAULT 'null',
		date_in TEXT NOT NULL DEFAULT 'null',
		invoice_total NUMERIC NOT NULL DEFAULT 0,
		dispute_status TEXT,
		row_data TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (vendor, invoice_id, seq),
		FOREIGN KEY (vendor, invoice_id) REFERENCES invoices (vendor, invoice_id) ON DELETE CASCADE
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tms_shipments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ld_num TEXT NOT NULL DEFAULT '',
		so_num TEXT NOT NULL DEFAULT '',
		shipment_number TEXT NOT NULL DEFAULT '',
		chassis_number TEXT NOT NULL DEFAULT '',
		container_number TEXT NOT NULL DEFAULT '',
		chassis_key TEXT NOT NULL DEFAULT '',
		container_key TEXT NOT NULL DEFAULT '',
		pickup_actual_date TEXT,
		delivery_actual_date TEXT,
		span_start TEXT,
		span_end TEXT,
		carrier_name TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS tms_shipments_chassis_key_idx ON tms_shipments (chassis_key, span_start, span_end)`,
	`CREATE INDEX IF NOT EXISTS tms_shipments_container_key_idx ON tms_shipments (container_key, span_start, span_end)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		vendor TEXT NOT NULL,
		invoice_id TEXT NOT NULL,
		account_code TEXT NOT NULL DEFAULT '',
		billing_date TEXT NOT NULL DEFAULT '',
		due_date TEXT NOT NULL DEFAULT '',
		currency_code TEXT NOT NULL DEFAULT '',
		amount_due TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'draft',
		validation_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (vendor, invoice_id)
	)`,
	`CREATE TABLE IF NOT EXISTS invoice_line_items (
		vendor TEXT NOT NULL,
		invoice_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		line_invoice_number TEXT NOT NULL DEFAULT '',
		chassis_identifier TEXT NOT NULL DEFAULT '',
		container_out_identifier TEXT NOT NULL DEFAULT '',
		container_in_identifier TEXT NOT NULL DEFAULT '',
		date_out TEXT NOT NULL DEFAULT 'null',
		date_in TEXT NOT NULL DEFAULT 'null',
		invoice_total TEXT NOT NULL DEFAULT '0',
		dispute_status TEXT,
		row_data TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (vendor, invoice_id, seq),
		FOREIGN KEY (vendor, invoice_id) REFERENCES invoices (vendor, invoice_id) ON DELETE CASCADE
	)`,
}

// Migrate creates the reconciler tables when they do not exist.
func Migrate(ctx context.Context, drv *entsql.Driver, logger *zap.Logger) error {
	var stmts []string
	switch drv.Dialect() {
	case dialect.Postgres:
		stmts = postgresSchema
	case dialect.SQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unsupported dialect %q", drv.Dialect())
	}
	for _, stmt := range stmts {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			logger.Error("migration failed", zap.Error(err))
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info("database schema up to date", zap.String("dialect", drv.Dialect()))
	return nil
}
