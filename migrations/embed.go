// Package migrations embeds the activity-log schema into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
