package config

import (
	"context"

	"gorm.io/gorm"
)

type contextKey string

const dbContextKey = contextKey("dbContext")

// WithDB attaches db (usually an open transaction) to ctx so that nested
// repository calls join it instead of opening their own.
func WithDB(ctx context.Context, db *gorm.DB) context.Context {
	return context.WithValue(ctx, dbContextKey, db)
}

func DBFromContext(ctx context.Context) (*gorm.DB, bool) {
	db, ok := ctx.Value(dbContextKey).(*gorm.DB)
	return db, ok
}
