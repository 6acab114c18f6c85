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

	"github.com/examgate/examgate-backend/internal/config"
)

// Schema migration runner. Invoked by hand during deploys; the server
// itself never migrates so a bad migration cannot take the API down with
// it.
func main() {
	var migrationDir string
	var steps int
	flag.StringVar(&migrationDir, "path", "migrations", "Path to migration files")
	flag.IntVar(&steps, "steps", 0, "Limit up/down to N steps (0 = all)")
	flag.Parse()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationDir), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("migrate init: %v", err)
	}

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = runSteps(m, steps, m.Up)
		report(err, "schema is up to date")
	case "down":
		if steps == 0 {
			// Rolling back everything is almost never what a deploy
			// wants; make it an explicit choice.
			log.Fatal("down requires -steps N (use -steps 999 to drop everything)")
		}
		err = m.Steps(-steps)
		report(err, "rolled back")
	case "version":
		version, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied yet")
			return
		}
		if verr != nil {
			log.Fatalf("version: %v", verr)
		}
		fmt.Printf("version %d (dirty=%t)\n", version, dirty)
	case "force":
		if flag.NArg() < 2 {
			log.Fatal("force requires a version argument")
		}
		v, aerr := strconv.Atoi(flag.Arg(1))
		if aerr != nil {
			log.Fatalf("invalid version %q: %v", flag.Arg(1), aerr)
		}
		if ferr := m.Force(v); ferr != nil {
			log.Fatalf("force: %v", ferr)
		}
		fmt.Printf("forced version to %d\n", v)
	default:
		usage()
		os.Exit(2)
	}
}

func runSteps(m *migrate.Migrate, steps int, all func() error) error {
	if steps > 0 {
		return m.Steps(steps)
	}
	return all()
}

func report(err error, okMsg string) {
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migration: %v", err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("no change")
		return
	}
	fmt.Println(okMsg)
}

func usage() {
	fmt.Println("Usage: migrate [flags] <up|down|version|force VERSION>")
	flag.PrintDefaults()
}
