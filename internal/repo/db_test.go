package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/legal-billing-backend/internal/domain"
)

func TestIsPostgresDSN(t *testing.T) {
	cases := map[string]bool{
		"postgres://u:p@db:5432/legal":   true,
		"postgresql://db/legal?ssl=off": true,
		"legal_billing.db":              false,
		"sqlite:///data/legal.db":       false,
		"/var/lib/postgres/legal.db":    false,
	}
	for dsn, want := range cases {
		if got := isPostgresDSN(dsn); got != want {
			t.Errorf("isPostgresDSN(%q) = %v, want %v", dsn, got, want)
		}
	}
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "legal.db")
	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error for %q, got db=%v err=%v", bad, db, err)
	}
	if !os.IsNotExist(err) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

func TestOpenSQLite_PragmasAndPool(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "legal.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	pragmas := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"foreign_keys": "1",
		"busy_timeout": "5000",
	}
	for name, want := range pragmas {
		var got string
		if err := db.Raw("PRAGMA " + name).Row().Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", name, err)
		}
		if strings.ToLower(got) != want {
			t.Errorf("PRAGMA %s = %q, want %q", name, got, want)
		}
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != sqlitePool.maxOpen {
		t.Fatalf("MaxOpenConnections = %d, want %d", got, sqlitePool.maxOpen)
	}
}

func TestAutoMigrate_SchemaUsable(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "legal.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	// Running it twice must be a no-op.
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("second AutoMigrate: %v", err)
	}
	for _, tbl := range []string{"emails", "credentials", "sync_locks", "sync_runs"} {
		if !db.Migrator().HasTable(tbl) {
			t.Fatalf("table %s missing", tbl)
		}
	}

	sent := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := db.Create(&domain.Email{GmailID: "18c2f0", Subject: "Engagement letter", DateSent: &sent}).Error; err != nil {
		t.Fatalf("insert email: %v", err)
	}
	if err := db.Create(&domain.Email{GmailID: "18c2f0", Subject: "dup"}).Error; err == nil {
		t.Fatal("gmail_id must be unique")
	}
	var got domain.Email
	if err := db.First(&got, "gmail_id = ?", "18c2f0").Error; err != nil || got.Subject != "Engagement letter" {
		t.Fatalf("readback: err=%v got=%+v", err, got)
	}
}

func TestOpen_SQLitePrefixAndTracing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.db")

	db, err := Open("sqlite://" + path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected database file at %q: %v", path, err)
	}
	if len(db.Config.Plugins) == 0 {
		t.Fatal("expected the tracing plugin to be registered")
	}
}
