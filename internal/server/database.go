package server

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	repo "github.com/joseph-ayodele/tms-reconciler/internal/repository"
)

// DB is an open database and, for postgres, the pool behind it.
type DB struct {
	Driver *entsql.Driver
	Pool   *pgxpool.Pool
}

// ConnectDB opens the configured database and brings its schema up to date.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	var db DB
	switch cfg.Driver {
	case "postgres":
		drv, pool, err := repo.Open(ctx, repo.Config{
			DSN:              cfg.DSN,
			MaxConns:         cfg.MaxConns,
			MinConns:         cfg.MinConns,
			MaxConnLifetime:  cfg.MaxConnLifetime,
			MaxConnIdleTime:  cfg.MaxConnIdleTime,
			DialTimeout:      cfg.DialTimeout,
			StatementTimeout: cfg.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "connect postgres", err)
		}
		db = DB{Driver: drv, Pool: pool}
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		drv, err := repo.OpenSQLite(ctx, dsn, logger)
		if err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "open sqlite", err)
		}
		db = DB{Driver: drv}
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unsupported database driver %q", cfg.Driver), common.ErrInvalidInput)
	}

	if err := repo.Migrate(ctx, db.Driver, logger); err != nil {
		CloseDB(&db, logger)
		return nil, err
	}
	return &db, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, db *DB, cfg common.DatabaseConfig, logger *zap.Logger) error {
	return repo.HealthCheck(ctx, db.Driver, cfg.HealthTimeout, logger)
}

// CloseDB closes the database connections gracefully
func CloseDB(db *DB, logger *zap.Logger) {
	if db == nil {
		return
	}
	repo.Close(db.Driver, db.Pool, logger)
}
