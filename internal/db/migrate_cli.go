package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/radian-data/presence.report/internal/monitoring"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string) error {
	if len(args) < 1 {
		PrintMigrateHelp()
		return fmt.Errorf("missing migrate action")
	}

	migrationsFS := MigrationsFS()

	// Open without schema initialization; migrations manage the schema.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		if err := database.MigrateUp(migrationsFS); err != nil {
			return err
		}
		monitoring.Logf("migrations applied")
		return nil

	case "down":
		if err := database.MigrateDown(migrationsFS); err != nil {
			return err
		}
		monitoring.Logf("rolled back one migration")
		return nil

	case "status":
		version, dirty, err := database.MigrateVersion(migrationsFS)
		if err != nil {
			return err
		}
		fmt.Printf("version: %d dirty: %v\n", version, dirty)
		return nil

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force requires a version argument")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return database.MigrateForce(migrationsFS, version)

	default:
		PrintMigrateHelp()
		return fmt.Errorf("unknown migrate action %q", action)
	}
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp() {
	fmt.Fprintln(os.Stderr, `usage: migrate <action>

actions:
  up            apply all pending migrations
  down          roll back the most recent migration
  status        print current version and dirty state
  force <ver>   force the recorded version (recovery only)`)
}
