package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/xo/dburl"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"leagueserver/config"
	"leagueserver/internal/db/models"
	"leagueserver/internal/standings"

	_ "modernc.org/sqlite"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to the database: %w", err)
	}
	log.Println("Connected to the database")
	return db, nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	if cfg.URL == "" {
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		return postgres.Open(dsn), nil
	}

	u, err := dburl.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	switch u.Driver {
	case "postgres", "pgx":
		return postgres.Open(u.DSN), nil
	case "mysql":
		dsn := u.DSN
		if !strings.Contains(dsn, "parseTime") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "charset=utf8mb4&parseTime=True&loc=UTC"
		}
		return mysql.Open(dsn), nil
	case "sqlite3", "moderncsqlite":
		return sqliteDialector(u.DSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", u.Driver)
}

func sqliteDialector(dsn string) gorm.Dialector {
	return sqlite.New(sqlite.Config{
		DSN:        dsn,
		DriverName: "sqlite",
	})
}

// OpenSQLite opens (and migrates) a sqlite database through the pure-Go
// driver. Used for local runs and tests.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqliteDialector(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	log.Println("Database migration completed")
	return nil
}

// Conn returns the transaction carried by ctx, or base bound to ctx.
func Conn(ctx context.Context, base *gorm.DB) *gorm.DB {
	if tx, ok := config.DBFromContext(ctx); ok {
		return tx
	}
	return base.WithContext(ctx)
}

// Transaction runs fn inside a single database transaction. A transaction
// already carried by ctx is joined rather than nested, so a cascade that
// spans several services commits or rolls back as one unit.
func Transaction(ctx context.Context, base *gorm.DB, fn func(ctx context.Context) error) error {
	if _, ok := config.DBFromContext(ctx); ok {
		return fn(ctx)
	}
	return base.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(config.WithDB(ctx, tx))
	})
}

// Translate maps storage errors to the league error taxonomy. Errors that
// already carry a taxonomy sentinel pass through.
func Translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", standings.ErrNotFound, what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s already exists", standings.ErrConflict, what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
