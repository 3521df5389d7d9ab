package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// MigrationsFS returns the schema migrations shipped in the binary. Keeping
// them embedded means a deployed unit never depends on a checkout layout.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		// The sub-directory is part of the embed directive; failure here
		// is a build defect, not a runtime condition.
		panic(err)
	}
	return sub
}
