package schema

import _ "embed"

// Snapshot is the JSON schema every snapshot line must satisfy.
//
//go:embed snapshot.schema.json
var Snapshot string

// SnapshotURL is the resource name Snapshot is registered under when compiled.
const SnapshotURL = "snapshot.schema.json"
