// Package dbmigrations exposes embedded SQL migrations for the ingestion
// service's Postgres schema.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations under sql/.
//
//go:embed sql/*.sql
var Files embed.FS
