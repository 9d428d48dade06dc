// Package db ships the SQL migrations with the binary.
package db

import "embed"

// Migrations holds the forward migration files, applied in lexical order.
//
//go:embed migrations/*.up.sql
var Migrations embed.FS
