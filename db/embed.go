// Package db embeds the SQL schema so the api-server and seed-db
// binaries can migrate without shipping loose files.
package db

import _ "embed"

// Schema holds the DDL for the orders and products tables.
//
//go:embed migrations/001_schema.sql
var Schema string
