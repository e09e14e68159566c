package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newDatabase(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "fixagent.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"CREATE TABLE core_settings (key TEXT PRIMARY KEY, value TEXT)",
		"INSERT INTO core_settings VALUES ('base_url', 'http://10.0.2.2:4000')",
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	return path
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	dbPath := newDatabase(t, src)
	cfgPath := filepath.Join(src, "fixagent.yaml")
	if err := os.WriteFile(cfgPath, []byte("discovery:\n  port: 4000\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	if err := Backup(ctx, dbPath, cfgPath, archive); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	dst := t.TempDir()
	restored, err := Restore(ctx, archive, dst, false)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(restored) != 2 {
		t.Fatalf("restored %d files, want 2: %v", len(restored), restored)
	}

	db, err := sql.Open("sqlite", filepath.Join(dst, "fixagent.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var got string
	if err := db.QueryRow("SELECT value FROM core_settings WHERE key = 'base_url'").Scan(&got); err != nil {
		t.Fatalf("query restored db: %v", err)
	}
	if got != "http://10.0.2.2:4000" {
		t.Errorf("base_url = %q", got)
	}
}

func TestRestoreRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	if err := Backup(ctx, newDatabase(t, src), "", archive); err != nil {
		t.Fatal(err)
	}

	dst := t.TempDir()
	if err := os.WriteFile(filepath.Join(dst, "fixagent.db"), []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Restore(ctx, archive, dst, false); !errors.Is(err, ErrExists) {
		t.Fatalf("Restore() without force error = %v, want ErrExists", err)
	}
	if _, err := Restore(ctx, archive, dst, true); err != nil {
		t.Fatalf("Restore() with force error = %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dst, "fixagent.db"))
	if string(data) == "old" {
		t.Error("force restore did not overwrite the database")
	}
}

func TestRestoreRejectsTraversal(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.tar.gz")
	f, err := os.Create(archive)
	if err != nil {
		t.Fatal(err)
	}
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	body := []byte("x")
	if err := tw.WriteHeader(&tar.Header{Name: "../escape.db", Mode: 0o600, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	tw.Write(body)
	tw.Close()
	gw.Close()
	f.Close()

	dst := t.TempDir()
	if _, err := Restore(context.Background(), archive, dst, false); err == nil {
		t.Fatal("Restore() accepted a path-traversal entry")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dst), "escape.db")); err == nil {
		t.Error("traversal entry was written outside the data dir")
	}
}

func TestBackupMissingDatabase(t *testing.T) {
	err := Backup(context.Background(), filepath.Join(t.TempDir(), "absent.db"), "", filepath.Join(t.TempDir(), "out.tar.gz"))
	if err == nil {
		t.Fatal("Backup() error = nil for missing database")
	}
}

func TestRestoreMissingArchive(t *testing.T) {
	if _, err := Restore(context.Background(), filepath.Join(t.TempDir(), "none.tar.gz"), t.TempDir(), false); err == nil {
		t.Fatal("Restore() error = nil for missing archive")
	}
}
