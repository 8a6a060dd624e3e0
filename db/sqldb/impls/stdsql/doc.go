// Package stdsql implements the sqldb handle types over database/sql.
// Backends reached through a database/sql driver (mysql, sqlite) share it.
package stdsql
