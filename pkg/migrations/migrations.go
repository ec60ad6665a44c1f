package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

type migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Close() (sourceErr error, databaseErr error)
}

var driverFactory = func(db *sql.DB, cfg Config) (database.Driver, error) {
	return postgres.WithInstance(db, &postgres.Config{MigrationsTable: cfg.MigrationsTable})
}

var sourceFactory = func(fsys fs.FS, path string) (source.Driver, error) {
	return iofs.New(fsys, path)
}

var migratorFactory = func(src source.Driver, driver database.Driver) (migrator, error) {
	return migrate.NewWithInstance("iofs", src, "postgres", driver)
}

type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config selects where migration files come from. FS takes precedence; when it
// is nil the files are read from Dir on disk.
type Config struct {
	FS              fs.FS
	Dir             string
	MigrationsTable string
	Logger          Logger
}

// Status describes the schema version recorded in the migrations table.
type Status struct {
	Version uint
	Dirty   bool
	// Empty is true when no migration has ever been applied.
	Empty bool
}

func (cfg *Config) normalize() {
	if strings.TrimSpace(cfg.MigrationsTable) == "" {
		cfg.MigrationsTable = "schema_migrations"
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		if cfg.FS != nil {
			cfg.Dir = "."
		} else {
			cfg.Dir = "migrations"
		}
	}
}

func (cfg Config) describe() string {
	if cfg.FS != nil {
		return "embedded:" + cfg.Dir
	}
	if abs, err := filepath.Abs(cfg.Dir); err == nil {
		return abs
	}
	return cfg.Dir
}

func open(db *sql.DB, cfg Config) (migrator, func(), error) {
	fsys, path := cfg.FS, cfg.Dir
	if fsys == nil {
		absDir, err := filepath.Abs(cfg.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("migrations: resolve dir: %w", err)
		}
		fsys, path = os.DirFS(absDir), "."
	}

	src, err := sourceFactory(fsys, path)
	if err != nil {
		return nil, nil, fmt.Errorf("migrations: source: %w", err)
	}

	driver, err := driverFactory(db, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("migrations: postgres driver: %w", err)
	}

	m, err := migratorFactory(src, driver)
	if err != nil {
		return nil, nil, fmt.Errorf("migrations: init: %w", err)
	}

	closeOnce := sync.Once{}
	closeMigrator := func() {
		closeOnce.Do(func() {
			srcErr, dbErr := m.Close()
			if cfg.Logger != nil {
				if srcErr != nil {
					cfg.Logger.Warn("Migrations source close error", "error", srcErr)
				}
				if dbErr != nil {
					cfg.Logger.Warn("Migrations db close error", "error", dbErr)
				}
			}
		})
	}
	return m, closeMigrator, nil
}

func prepare(ctx context.Context, db *sql.DB, cfg *Config) error {
	if db == nil {
		return fmt.Errorf("migrations: db is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg.normalize()
	return nil
}

// run executes step in the background so a cancelled ctx can interrupt it;
// migrate itself does not accept a context.
func run(ctx context.Context, closeMigrator func(), step func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- step()
	}()

	select {
	case <-ctx.Done():
		closeMigrator()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Up applies every pending migration.
func Up(ctx context.Context, db *sql.DB, cfg Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := prepare(ctx, db, &cfg); err != nil {
		return err
	}

	m, closeMigrator, err := open(db, cfg)
	if err != nil {
		return err
	}
	defer closeMigrator()

	if cfg.Logger != nil {
		cfg.Logger.Info("Running SQL migrations", "source", cfg.describe(), "table", cfg.MigrationsTable)
	}

	if err := run(ctx, closeMigrator, m.Up); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			if cfg.Logger != nil {
				cfg.Logger.Info("No migrations to apply")
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		return fmt.Errorf("migrations: up: %w", err)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("Migrations applied successfully")
	}
	return nil
}

// Down rolls back every applied migration.
func Down(ctx context.Context, db *sql.DB, cfg Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := prepare(ctx, db, &cfg); err != nil {
		return err
	}

	m, closeMigrator, err := open(db, cfg)
	if err != nil {
		return err
	}
	defer closeMigrator()

	if cfg.Logger != nil {
		cfg.Logger.Warn("Rolling back SQL migrations", "source", cfg.describe(), "table", cfg.MigrationsTable)
	}

	if err := run(ctx, closeMigrator, m.Down); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		return fmt.Errorf("migrations: down: %w", err)
	}
	return nil
}

// CurrentStatus reports the applied schema version.
func CurrentStatus(ctx context.Context, db *sql.DB, cfg Config) (Status, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := prepare(ctx, db, &cfg); err != nil {
		return Status{}, err
	}

	m, closeMigrator, err := open(db, cfg)
	if err != nil {
		return Status{}, err
	}
	defer closeMigrator()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{Empty: true}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("migrations: version: %w", err)
	}
	return Status{Version: version, Dirty: dirty}, nil
}
