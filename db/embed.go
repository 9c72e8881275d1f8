// Package db embeds the checkout schema and the default seed catalog.
package db

import _ "embed"

// Schema holds the DDL for organizations, offers, customers, orders and vouchers.
// Every statement is idempotent so it can run on each start.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedCatalog is the demo catalog used by seed-db when no file is given.
//
//go:embed seed/offers.json
var SeedCatalog []byte
