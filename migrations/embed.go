// Package migrations embeds the SQL schema migrations. Importing it
// registers them with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.RegisterMigrations(files, ".")
}
