package main

import (
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/internal/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.NewLogger("info", "console", "lexlink-migrate")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var (
		dsn     = flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
		source  = flag.String("source", "file://migrations", "Migration source")
		command = flag.String("command", "up", "Migration command (up, down, force)")
		version = flag.Int("version", 1, "Version used by the force command")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("DATABASE_URL or -database-url is required")
	}

	config, err := pgx.ParseConfig(*dsn)
	if err != nil {
		log.Fatal("Failed to parse DSN", zap.Error(err))
	}
	db := stdlib.OpenDB(*config)
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal("Failed to create migration driver", zap.Error(err))
	}

	m, err := migrate.NewWithDatabaseInstance(*source, "postgres", driver)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}

	switch *command {
	case "up":
		log.Info("Applying migrations", zap.String("source", *source))
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
		log.Info("Migrations applied successfully")
	case "down":
		log.Info("Reverting migrations", zap.String("source", *source))
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal("Failed to revert migrations", zap.Error(err))
		}
		log.Info("Migrations reverted successfully")
	case "force":
		if err := m.Force(*version); err != nil {
			log.Fatal("Failed to force migration version", zap.Int("version", *version), zap.Error(err))
		}
		log.Info("Migration version forced", zap.Int("version", *version))
	default:
		log.Fatal("Unknown command", zap.String("command", *command))
	}
}
