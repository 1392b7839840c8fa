// Package main applies or rolls back the winddown database schema using the
// migration files embedded in the binary.
package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"

	"github.com/winddownhq/winddown/db"
)

func main() {
	_ = godotenv.Load() // allow .env for local runs

	var (
		dsn   = flag.String("dsn", os.Getenv("DATABASE_DSN"), "postgres:// connection URL")
		down  = flag.Bool("down", false, "roll back one migration instead of applying")
		steps = flag.Int("steps", 0, "apply exactly this many migrations (negative rolls back)")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("A DSN is required: pass -dsn or set DATABASE_DSN")
	}

	source, err := iofs.New(db.Migrations, "migrations")
	if err != nil {
		log.Fatalf("Failed to read embedded migrations: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, *dsn)
	if err != nil {
		log.Fatalf("Failed to initialise migrator: %v", err)
	}
	defer m.Close()

	switch {
	case *steps != 0:
		err = m.Steps(*steps)
	case *down:
		err = m.Steps(-1)
	default:
		err = m.Up()
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("Schema already up to date")
		return
	}
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}
	log.Printf("Schema at version %d (dirty=%v)", version, dirty)
}
