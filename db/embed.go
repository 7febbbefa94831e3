package db

import "embed"

// MigrationsFS carries the schema migrations into the binary so dispatchctl
// can run them without a checkout.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
