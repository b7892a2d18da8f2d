// Package migrations embeds the schema migrations for each supported dialect.
package migrations

import "embed"

// FS holds one directory per dialect: sqlite/ and postgres/.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
