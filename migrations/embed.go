// Package migrations embeds the goose SQL migrations for every supported dialect.
package migrations

import "embed"

// FS holds the migrations, one directory per dialect
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
