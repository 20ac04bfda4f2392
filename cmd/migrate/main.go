// Command migrate applies the claims-iq schema migrations. The rules
// table (and its default rule seed) lives in migrations/.
//
// Usage:
//
//	migrate [-database URL] [-path dir] <up|down|version|force N>
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	databaseURL := flag.String("database", os.Getenv("DATABASE_URL"), "Database URL (defaults to DATABASE_URL)")
	migrationsPath := flag.String("path", "migrations", "Path to migrations directory")
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("no database URL: pass -database or set DATABASE_URL")
	}
	if flag.NArg() == 0 {
		log.Fatal("no command: expected up, down, version, or force <N>")
	}

	m, err := migrate.New("file://"+*migrationsPath, *databaseURL)
	if err != nil {
		log.Fatalf("opening migrations at %s: %v", *migrationsPath, err)
	}
	defer m.Close()

	if err := run(m, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(m *migrate.Migrate, args []string) error {
	switch cmd := args[0]; cmd {
	case "up":
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Println("schema already up to date")
				return nil
			}
			return fmt.Errorf("migrating up: %w", err)
		}
		log.Println("schema migrated")
		return nil

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("rolling back: %w", err)
		}
		log.Println("schema rolled back")
		return nil

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
		log.Printf("schema version %d (dirty: %v)", version, dirty)
		return nil

	case "force":
		if len(args) < 2 {
			return errors.New("force needs a version number")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad version %q: %w", args[1], err)
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("forcing version %d: %w", version, err)
		}
		log.Printf("schema version forced to %d", version)
		return nil

	default:
		return fmt.Errorf("unknown command %q: expected up, down, version, or force", cmd)
	}
}
