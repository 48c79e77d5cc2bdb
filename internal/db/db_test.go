package db

import (
	"path/filepath"
	"testing"
)

func TestConnect_SQLitePrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	gdb, err := Connect("sqlite:" + path)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if name := gdb.Dialector.Name(); name != "sqlite" {
		t.Fatalf("expected sqlite dialector, got %q", name)
	}
}
