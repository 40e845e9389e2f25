package postgres

import "embed"

// Migrations holds the SQL migration files, embedded so the binary can apply
// them without a filesystem checkout.
//
//go:embed migrations/*.sql
var Migrations embed.FS
