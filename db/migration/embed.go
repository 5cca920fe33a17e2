package migration

import "embed"

// FS holds the schema for every supported driver, one directory each.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
