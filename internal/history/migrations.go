package history

import "embed"

// Migrations embeds the goose migration set for the adaptation_events table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory passed to pkg/database.RunMigrations.
const MigrationsDir = "migrations"
