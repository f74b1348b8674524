// Package migrations embeds the goose SQL migrations for the reset service.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
