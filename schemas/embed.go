// Package schemas holds the JSON Schemas for persisted snapshot and report documents.
package schemas

import _ "embed"

// Snapshot is the schema every baseline.json must satisfy.
//
//go:embed snapshot.schema.json
var Snapshot string

// Report is the schema for structured comparison reports.
//
//go:embed report.schema.json
var Report string
