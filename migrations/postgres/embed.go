// Package postgres embebe las migraciones SQL de la base principal.
package postgres

import "embed"

// FS contiene las migraciones goose de la base principal.
//
//go:embed sql/*.sql
var FS embed.FS

// Dir es el directorio dentro de FS donde viven las migraciones.
const Dir = "sql"
