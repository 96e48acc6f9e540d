// Package migrations embeds the SQL schema for each supported database.
package migrations

import "embed"

// SQLite holds the sqlite schema migrations under sqlite/
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds the postgres schema migrations under postgres/
//
//go:embed postgres/*.sql
var Postgres embed.FS
