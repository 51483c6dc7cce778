// Package migrations embeds the versioned schema for the employee store.
// cmd/migrate applies it through golang-migrate's iofs source; at runtime no
// migration files need to exist on disk.
package migrations

import "embed"

// FS holds every NNNNNN_name.{up,down}.sql file of this directory.
//
//go:embed *.sql
var FS embed.FS
