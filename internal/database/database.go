// Package database opens the SQL connection pool for the configured driver.
package database

import (
	"context"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "database").Logger()

// RetryDelay is the pause between connection attempts.
var RetryDelay = 3 * time.Second

// NormalizeDSN makes MySQL scan DATETIME columns into time.Time in UTC.
// Other drivers get the DSN back unchanged.
func NormalizeDSN(driver, dsn string) (string, error) {
	if driver != "mysql" {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "invalid mysql DSN")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Open connects to the database, retrying while it is still starting up.
func Open(ctx context.Context, driver, dsn string, retries int) (*sqlx.DB, error) {
	dsn, err := NormalizeDSN(driver, dsn)
	if err != nil {
		return nil, err
	}
	if retries < 1 {
		retries = 1
	}

	var db *sqlx.DB
	for i := 0; i < retries; i++ {
		db, err = sqlx.Open(driver, dsn)
		if err == nil {
			err = db.PingContext(ctx)
			if err == nil {
				db.SetMaxOpenConns(25)
				db.SetMaxIdleConns(5)
				db.SetConnMaxLifetime(30 * time.Minute)
				logger.Info().Str("driver", driver).Msg("connected to database")
				return db, nil
			}
			_ = db.Close()
		}
		logger.Warn().Err(err).Int("attempt", i+1).Str("driver", driver).Msg("failed to connect to database")
		if i == retries-1 {
			break
		}
		select {
		case <-time.After(RetryDelay):
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "database connect cancelled")
		}
	}
	return nil, errors.Wrapf(err, "failed to connect to %s after %d attempts", driver, retries)
}
