// Package migrations embeds the SQL schema so the server can bootstrap
// itself without a migrations directory on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
