package mysql

import (
	"context"
	"log/slog"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"yakunote/internal/platform/sqldb"
)

// New opens a self-hosted MySQL summary store.
func New(ctx context.Context, dsn string, log *slog.Logger) (*gorm.DB, error) {
	return sqldb.Open(ctx, "mysql", mysql.New(mysql.Config{
		DSN:               dsn,
		DefaultStringSize: 255,
	}), sqldb.DefaultPoolOptions(), log)
}
