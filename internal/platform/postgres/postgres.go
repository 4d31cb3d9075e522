package postgres

import (
	"context"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"yakunote/internal/platform/sqldb"
)

// New opens the Supabase database directly through its connection string.
// The Supabase pooler runs in transaction mode, so prepared statements stay off.
func New(ctx context.Context, databaseURL string, log *slog.Logger) (*gorm.DB, error) {
	pool := sqldb.DefaultPoolOptions()
	pool.MaxOpenConns = 20
	return sqldb.Open(ctx, "postgres", postgres.New(postgres.Config{
		DSN:                  databaseURL,
		PreferSimpleProtocol: true,
	}), pool, log)
}
