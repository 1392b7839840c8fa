// Package db embeds the SQL migration files shipped with the service.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
