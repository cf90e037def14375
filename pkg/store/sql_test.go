package store

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestInsertSQL(t *testing.T) {
	got := insertSQL("users", []string{"a", "b"}, nil, 2, "ON CONFLICT (a) DO NOTHING")
	want := "INSERT INTO users (a,b) VALUES ($1,$2),($3,$4) ON CONFLICT (a) DO NOTHING"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestInsertSQLNoConflict(t *testing.T) {
	got := insertSQL("t", []string{"x"}, nil, 3, "")
	want := "INSERT INTO t (x) VALUES ($1),($2),($3)"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestInsertSQLExprs(t *testing.T) {
	got := insertSQL("tweets", []string{"id", "geo"}, []string{"", "ST_GeomFromText(%s)"}, 2, "")
	want := "INSERT INTO tweets (id,geo) VALUES ($1,ST_GeomFromText($2)),($3,ST_GeomFromText($4))"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(3); got != "$1,$2,$3" {
		t.Fatalf("got %q", got)
	}
	if got := placeholders(1); got != "$1" {
		t.Fatalf("got %q", got)
	}
}

func TestExecInsert(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("CREATE TABLE kv (k TEXT UNIQUE, v INTEGER)"); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	rows := [][]any{{"a", 1}, {"b", 2}, {"a", 3}}
	if err := execInsert(ctx, tx, "kv", []string{"k", "v"}, nil, "ON CONFLICT (k) DO NOTHING", rows); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
	var v int
	if err := db.QueryRow("SELECT v FROM kv WHERE k = 'a'").Scan(&v); err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("conflict overwrote first value: %d", v)
	}
}

func TestExecInsertEmpty(t *testing.T) {
	if err := execInsert(context.Background(), nil, "kv", []string{"k"}, nil, "", nil); err != nil {
		t.Fatal(err)
	}
}
