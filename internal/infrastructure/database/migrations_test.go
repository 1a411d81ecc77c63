package database

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

var testMigrations = fstest.MapFS{
	"sql/20261019_090000_entities.up.sql":   {Data: []byte(`CREATE TABLE entities (unique_id TEXT PRIMARY KEY, platform TEXT NOT NULL) STRICT;`)},
	"sql/20261019_090000_entities.down.sql": {Data: []byte(`DROP TABLE entities;`)},
	"sql/20261020_080000_numbers.up.sql":    {Data: []byte(`CREATE TABLE numbers (unique_id TEXT PRIMARY KEY) STRICT;`)},
	"sql/README.md":                         {Data: []byte("ignored")},
}

func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()
	prevFS, prevDir := registeredMigrations()
	RegisterMigrations(fsys, dir)
	t.Cleanup(func() { RegisterMigrations(prevFS, prevDir) })
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	return n == 1
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := LoadMigrations(testMigrations, "sql")
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}
	first, second := migrations[0], migrations[1]
	if first.Version != "20261019_090000" || first.Name != "entities" || first.DownSQL == "" {
		t.Errorf("first = %+v", first)
	}
	if second.Version != "20261020_080000" || second.DownSQL != "" {
		t.Errorf("second = %+v", second)
	}
}

func TestLoadMigrations_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name:    "down without up",
			fsys:    fstest.MapFS{"sql/20261019_090000_x.down.sql": {Data: []byte("DROP TABLE x;")}},
			wantErr: "no up file",
		},
		{
			name: "conflicting names",
			fsys: fstest.MapFS{
				"sql/20261019_090000_a.up.sql": {Data: []byte("SELECT 1;")},
				"sql/20261019_090000_b.up.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "conflicting names",
		},
		{
			name:    "missing directory",
			fsys:    fstest.MapFS{},
			wantErr: "reading migrations directory",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMigrations(tt.fsys, "sql")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadMigrations() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestMigrationFilePattern(t *testing.T) {
	tests := map[string]bool{
		"20261019_090000_entity_store.up.sql":   true,
		"20261019_090000_entity_store.down.sql": true,
		"20261019_090000_entity_store.sql":      false,
		"2026_entity_store.up.sql":              false,
		"20261019_090000_Entity.up.sql":         false,
		"embed.go":                              false,
	}
	for name, want := range tests {
		if got := migrationFile.MatchString(name); got != want {
			t.Errorf("match(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations, "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "entities") || !tableExists(t, db, "numbers") {
		t.Fatal("migrated tables missing")
	}

	// Second run is a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied = %d, pending = %d", len(applied), len(pending))
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("AppliedAt not recorded")
	}
}

func TestMigrate_FailureStopsAndRollsBack(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"sql/20261019_090000_good.up.sql": {Data: []byte("CREATE TABLE good (id INTEGER);")},
		"sql/20261019_100000_bad.up.sql":  {Data: []byte("CREATE TABLE half (id INTEGER); NOT SQL;")},
		"sql/20261019_110000_late.up.sql": {Data: []byte("CREATE TABLE late (id INTEGER);")},
	}, "sql")
	db := openTestDB(t)
	ctx := context.Background()

	err := db.Migrate(ctx)
	if err == nil || !strings.Contains(err.Error(), "20261019_100000") {
		t.Fatalf("Migrate() error = %v, want failure naming the bad migration", err)
	}
	if !tableExists(t, db, "good") {
		t.Error("earlier migration was not kept")
	}
	if tableExists(t, db, "half") || tableExists(t, db, "late") {
		t.Error("failed or later migration left changes behind")
	}
	_, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Errorf("pending = %d, want 2", len(pending))
	}
}

func TestRollback(t *testing.T) {
	useMigrations(t, testMigrations, "sql")
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	// The latest migration has no down file.
	if err := db.Rollback(ctx); err == nil || !strings.Contains(err.Error(), "no down SQL") {
		t.Fatalf("Rollback() error = %v, want no down SQL", err)
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = '20261020_080000'"); err != nil {
		t.Fatal(err)
	}
	if err := db.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if tableExists(t, db, "entities") {
		t.Error("entities table still present")
	}

	// Nothing left to roll back.
	if err := db.Rollback(ctx); err != nil {
		t.Errorf("Rollback() on empty history error = %v", err)
	}
}

func TestMigrate_NothingRegistered(t *testing.T) {
	useMigrations(t, nil, ".")
	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() error = %v", err)
	}
}
