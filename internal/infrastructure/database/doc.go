// Package database provides the uplink's local SQLite store.
//
// The store holds the connectivity journal: one row per link, session and
// producer lifecycle transition, so that the history of drops and
// reconnections survives a restart.
//
// Open configures WAL mode, a busy timeout and a single connection. Schema
// changes are versioned SQL files applied by Migrate from any fs.FS, normally
// the embedded set in the top-level migrations package:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are nullable or have defaults, and
// each .up.sql has a .down.sql for development rollbacks.
package database
