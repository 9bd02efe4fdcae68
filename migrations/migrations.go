// Package migrations embeds the ledger state store schema so the peer
// binary deploys without external schema files.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
