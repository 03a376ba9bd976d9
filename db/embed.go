// Package db provides the embedded database schema.
package db

import _ "embed"

// Schema holds the idempotent DDL for the catalog, cart, address, coupon
// and order tables.
//
//go:embed migrations/001_schema.sql
var Schema string
