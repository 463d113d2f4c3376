package db

import (
	"os"
	"testing"
)

func TestRebind(t *testing.T) {
	q := `UPDATE t SET a=?, b='?' WHERE id=? AND c=?`
	if got := Rebind(SQLite, q); got != q {
		t.Fatalf("sqlite should not rewrite: %s", got)
	}
	want := `UPDATE t SET a=$1, b='?' WHERE id=$2 AND c=$3`
	if got := Rebind(Postgres, q); got != want {
		t.Fatalf("postgres rebind = %s, want %s", got, want)
	}
}

func TestOpenSQLiteCreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, dialect, err := Open(Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if dialect != SQLite {
		t.Fatalf("dialect = %s", dialect)
	}
	if err := conn.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := os.Stat(Path(dir)); err != nil {
		t.Fatalf("db file missing: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error")
	}
}
