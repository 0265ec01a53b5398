// Package db provides the embedded database migrations.
package db

import "embed"

// MigrationsDir is the directory of Migrations holding goose SQL files.
const MigrationsDir = "migrations"

// Migrations contains the goose migrations for all application tables.
//
//go:embed migrations/*.sql
var Migrations embed.FS
