// Package database provides the SQLite connection and schema migrations
// for Rover Core.
//
// SQLite is opened in WAL mode with a single writer connection, which
// matches its concurrency model and keeps the trajectory repository's
// conditional updates serialised at the storage layer. Migrations are
// embedded into the binary via the top-level migrations package and
// applied on startup, each in its own transaction.
package database
