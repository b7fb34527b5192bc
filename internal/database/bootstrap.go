package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/examsecure/internal/config"
	"github.com/stemsi/examsecure/migrations"
)

// AdvisoryLocker takes and releases a session-level advisory lock without blocking.
type AdvisoryLocker interface {
	TryLock(ctx context.Context, key int64) (bool, error)
	Unlock(ctx context.Context, key int64) error
}

type connLocker struct {
	conn *pgxpool.Conn
}

func (l *connLocker) TryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := l.conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok)
	return ok, err
}

func (l *connLocker) Unlock(ctx context.Context, key int64) error {
	_, err := l.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, key)
	return err
}

// RunLocked runs fn only if the advisory lock for key is free. When another
// instance holds it, RunLocked logs and returns (false, nil) at once.
func RunLocked(ctx context.Context, locker AdvisoryLocker, key int64, log zerolog.Logger, fn func() error) (bool, error) {
	ok, err := locker.TryLock(ctx, key)
	if err != nil {
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		log.Info().Int64("lock_id", key).Msg("Schema initialization held by another instance, skipping")
		return false, nil
	}
	defer func() {
		if err := locker.Unlock(context.Background(), key); err != nil {
			log.Warn().Err(err).Int64("lock_id", key).Msg("Failed to release advisory lock")
		}
	}()

	if err := fn(); err != nil {
		return true, err
	}
	return true, nil
}

// Bootstrap applies the embedded schema once across concurrently starting instances.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, log zerolog.Logger) (bool, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return RunLocked(ctx, &connLocker{conn: conn}, cfg.MigrationsLockID, log, func() error {
		m, err := NewMigrator(cfg.DatabaseURL, "")
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
		version, _, _ := m.Version()
		log.Info().Uint("version", version).Msg("Schema initialized")
		return nil
	})
}

// NewMigrator builds a migrator over dir, or over the embedded migrations when dir is empty.
func NewMigrator(databaseURL, dir string) (*migrate.Migrate, error) {
	if dir != "" {
		m, err := migrate.New("file://"+dir, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("init migrator: %w", err)
		}
		return m, nil
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}
