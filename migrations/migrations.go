// Package migrations embeds the schema migration files so the migrator and
// the integration tests apply the same schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
