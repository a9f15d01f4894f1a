package database

import (
	"database/sql"
	"regexp"
	"strconv"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// SupportsLastInsertId returns true if the driver supports LastInsertId()
	SupportsLastInsertId() bool

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL to create the migrations tracking table
	CreateMigrationsTableQuery() string

	// InsertIgnorePrefix and InsertIgnoreSuffix wrap an INSERT so that a row
	// colliding with a unique key is silently skipped.
	InsertIgnorePrefix() string
	InsertIgnoreSuffix() string

	// LockForUpdate returns the row locking clause appended to a SELECT inside
	// a transaction, or "" when the engine serializes writers itself.
	LockForUpdate() string
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// placeholderRegexp matches ? placeholders not inside quotes
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// InsertIgnore builds "INSERT ... VALUES (...)" for the dialect that skips
// rows violating a unique constraint. columnsAndValues is the part after the
// table name, e.g. "(slug, name) VALUES (?, ?)".
func InsertIgnore(d Dialect, table, columnsAndValues string) string {
	return d.InsertIgnorePrefix() + " " + table + " " + columnsAndValues + d.InsertIgnoreSuffix()
}
