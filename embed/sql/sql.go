package sql

import _ "embed"

// Schema creates the todos table. Safe to apply on every start.
//
//go:embed schema.sql
var Schema string
