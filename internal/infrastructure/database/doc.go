// Package database opens the SQLite database and applies schema
// migrations.
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are SQL files named YYYYMMDD_HHMMSS_name.up.sql with an
// optional matching .down.sql, registered by the migrations package.
// Applied versions are tracked in schema_migrations.
//
// Files are created with 0600 permissions; WAL mode is used for on-disk
// databases. Tests and the offline CLI may open MemoryPath.
package database
