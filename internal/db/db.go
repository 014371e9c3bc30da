package db

import "database/sql"

// DB is a thin wrapper so packages depend on this type rather than
// database/sql directly.
type DB struct {
	*sql.DB
}
