// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contiene las migraciones de Postgres, aplicadas en orden lexicográfico.
//
//go:embed *.sql
var FS embed.FS
