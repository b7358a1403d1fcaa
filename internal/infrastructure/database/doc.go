// Package database provides SQLite connectivity for the routines service.
//
// The database holds the append-only activity log. Routine definitions,
// credentials and settings live in JSON documents (see package jsonfile).
//
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Embedded, versioned schema migrations
//   - A single-writer connection pool
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional .down.sql counterpart, and are embedded by package migrations.
package database
