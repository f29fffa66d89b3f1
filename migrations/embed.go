// Package migrations embeds the SQL schema files applied by storage.RunMigrations.
package migrations

import "embed"

// FS holds every .sql file in this directory, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
