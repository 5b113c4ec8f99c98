package migrations

import "embed"

// FS contains embedded SQLite migrations for gametable storage.
//
//go:embed *.sql
var FS embed.FS
