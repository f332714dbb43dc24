package appfs

import "embed"

// FS holds the files shipped inside the binaries.
//
//go:embed migrations/*.sql
var FS embed.FS

// MigrationsDir is the goose migrations directory within FS.
const MigrationsDir = "migrations"
