// Package migrations holds the SQLite schema for the snapshot store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
