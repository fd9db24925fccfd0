package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
)

func TestRebind(t *testing.T) {
	pg := &Client{driver: "postgres"}
	got := pg.Rebind("INSERT INTO t (a, b) VALUES (?, ?)")
	if want := "INSERT INTO t (a, b) VALUES ($1, $2)"; got != want {
		t.Errorf("Rebind = %q, want %q", got, want)
	}
	lite := &Client{driver: "sqlite"}
	if got := lite.Rebind("SELECT ?"); got != "SELECT ?" {
		t.Errorf("sqlite Rebind changed query: %q", got)
	}
}

func TestOpenSQLiteMigrates(t *testing.T) {
	c, err := OpenSQLite(filepath.Join(t.TempDir(), "sub", "data.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer c.Close()

	for _, table := range []string{"tickets", "documents"} {
		var n int
		if err := c.DB.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestInTxRollsBack(t *testing.T) {
	c, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	sentinel := errors.New("abort")
	err = c.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (name, content, created_at) VALUES ('a', 'b', CURRENT_TIMESTAMP)`); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	var n int
	if err := c.DB.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected rollback, found %d rows", n)
	}
}

func TestClassifyPingError(t *testing.T) {
	var perm interface{ Unwrap() error }
	authErr := &pq.Error{Code: "28P01", Message: "password authentication failed"}
	if err := classifyPingError(authErr); !errors.As(err, &perm) || !errors.Is(err, authErr) {
		t.Errorf("auth failure should be permanent, got %T", err)
	}
	missingDB := &pq.Error{Code: "3D000", Message: "database does not exist"}
	if err := classifyPingError(missingDB); err == error(missingDB) {
		t.Error("unknown database should be permanent")
	}
	refused := errors.New("dial tcp: connection refused")
	if err := classifyPingError(refused); err != refused {
		t.Errorf("transient error changed: %v", err)
	}
	if classifyPingError(nil) != nil {
		t.Error("nil should stay nil")
	}
}
