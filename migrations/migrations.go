// Package migrations embeds the schema so the binary and the tests apply the
// same SQL. The statements are kept portable between SQLite and Postgres.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
