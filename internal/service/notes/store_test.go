package notes

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"synthesistalk/internal/config"
	"synthesistalk/internal/storage"
)

func TestNotesAppendListDelete(t *testing.T) {
	db := openDB(t, ":memory:")
	defer db.Close()
	store := NewStore(db)
	ctx := context.Background()

	for _, n := range []string{"first", "second", "third"} {
		if _, err := store.Append(ctx, "u1", n); err != nil {
			t.Fatalf("append %s: %v", n, err)
		}
	}
	list, err := store.Delete(ctx, "u1", 1)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(list) != 2 || list[0] != "first" || list[1] != "third" {
		t.Fatalf("unexpected list after delete: %v", list)
	}

	list, err = store.Delete(ctx, "u1", 7)
	if err != nil {
		t.Fatalf("delete out of range: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("out of range delete changed list: %v", list)
	}

	list, err = store.Clear(ctx, "u1")
	if err != nil || len(list) != 0 {
		t.Fatalf("clear: %v %v", list, err)
	}
}

func TestNotesDeleteTrimsUserID(t *testing.T) {
	db := openDB(t, ":memory:")
	defer db.Close()
	store := NewStore(db)
	ctx := context.Background()

	for _, n := range []string{"keep", "drop"} {
		if _, err := store.Append(ctx, "u1", n); err != nil {
			t.Fatalf("append %s: %v", n, err)
		}
	}
	list, err := store.Delete(ctx, " u1 ", 1)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(list) != 1 || list[0] != "keep" {
		t.Fatalf("padded user id did not delete the note: %v", list)
	}
	stored, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 || stored[0] != "keep" {
		t.Fatalf("note still stored after delete: %v", stored)
	}
}

func TestNotesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")
	db := openDB(t, path)
	if _, err := NewStore(db).Append(context.Background(), "u2", "durable note"); err != nil {
		t.Fatalf("append: %v", err)
	}
	db.Close()

	db = openDB(t, path)
	defer db.Close()
	list, err := NewStore(db).List(context.Background(), "u2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0] != "durable note" {
		t.Fatalf("note not retrievable after reopen: %v", list)
	}
}

func openDB(t *testing.T, dsn string) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{"sqlite3": {DSN: dsn}},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}
