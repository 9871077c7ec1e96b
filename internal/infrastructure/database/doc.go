// Package database provides SQLite storage for LedFx Core.
//
// The database holds devices and displays created at runtime, such as
// those added by WLED discovery, so they survive a restart. Devices and
// displays declared in config.yaml are loaded from there instead.
//
// The connection runs in WAL mode with a single writer. Schema changes are
// shipped as embedded migration files named
// YYYYMMDD_HHMMSS_description.up.sql and applied in version order:
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
package database
