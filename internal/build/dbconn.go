package build

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver, registered for sqlx.Connect("postgres", ...)
)

// OpenPostgres connects to a Postgres-compatible host database for
// external-mode table reads (LoadExternalRows), per spec.md §1's
// "external collaborators" scoping: the host's heap/table storage is
// outside this module's core, accessed only through this thin seam.
func OpenPostgres(dsn string) (*sqlx.DB, error) {
	return sqlx.Connect("postgres", dsn)
}
