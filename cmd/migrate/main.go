package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/streamcart/backend/internal/infrastructure/config"
	"github.com/streamcart/backend/internal/infrastructure/logger"
	"github.com/streamcart/backend/internal/infrastructure/migration"
)

const defaultMigrationsDir = "migrations"

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "path to the migrations directory (default: ./migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:  logLevel,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	if err := run(args[0], args[1:], migrationsPath, log); err != nil {
		log.Error("migration command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func run(command string, args []string, migrationsPath string, log *zap.Logger) error {
	dir, err := resolveMigrationsDir(migrationsPath)
	if err != nil {
		return err
	}

	log.Info("migration tool started",
		zap.String("command", command),
		zap.String("migrations_path", dir))

	// create and list only touch the filesystem.
	switch command {
	case "create":
		return createMigration(dir, args, log)
	case "list":
		return listMigrations(dir, log)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, dir, log)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "step count")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "goto":
		v, err := intArg(args, "target version")
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("target version must not be negative, got %d", v)
		}
		return m.GoTo(uint(v))
	case "version":
		return showVersion(m, log)
	case "force":
		v, err := intArg(args, "version")
		if err != nil {
			return err
		}
		log.Warn("forcing migration version, schema state is not verified")
		return m.Force(v)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// resolveMigrationsDir finds the migrations directory: an explicit
// -path flag wins, then the working directory, then the repo layout
// relative to the installed binary.
func resolveMigrationsDir(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	if _, err := os.Stat(defaultMigrationsDir); err == nil {
		return filepath.Abs(defaultMigrationsDir)
	}
	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), "..", "..", defaultMigrationsDir)
		if _, err := os.Stat(candidate); err == nil {
			return filepath.Abs(candidate)
		}
	}
	return filepath.Abs(defaultMigrationsDir)
}

func createMigration(dir string, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("migration name required: migrate create <name> [description]")
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}

	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath))
	return nil
}

func listMigrations(dir string, log *zap.Logger) error {
	migrations, err := migration.ListMigrations(dir)
	if err != nil {
		return err
	}
	if len(migrations) == 0 {
		log.Info("no migrations found")
		return nil
	}
	log.Info("available migrations", zap.Int("count", len(migrations)))
	for _, m := range migrations {
		fmt.Println("  -", m)
	}
	return nil
}

func showVersion(m *migration.Migrator, log *zap.Logger) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		log.Info("no migrations applied")
		return nil
	}
	log.Info("current migration version",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}

func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%s required", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

func printUsage() {
	fmt.Println(`StreamCart schema migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  goto <version>        Migrate to a specific version
  version               Show current migration version
  force <version>       Force-set the recorded version (use with caution)
  create <name> [desc]  Create a new up/down migration file pair
  list                  List available migrations

Flags:
  -path string          Path to migrations directory (default: ./migrations)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  STREAMCART_DATABASE_HOST, STREAMCART_DATABASE_PORT, STREAMCART_DATABASE_USER,
  STREAMCART_DATABASE_PASSWORD, STREAMCART_DATABASE_DBNAME, STREAMCART_DATABASE_SSLMODE

Examples:
  # Apply all pending migrations
  migrate up

  # Roll back the last migration
  migrate step -1

  # Create a new migration
  migrate create add_payout_holds "Track manual holds on payout batches"

  # Check current version
  migrate version`)
}
