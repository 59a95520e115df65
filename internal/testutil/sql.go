package testutil

import (
	"database/sql"
	"testing"

	// Registers the sqlite3 driver for in-memory test databases.
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// OpenSQLite opens a private in-memory SQLite database that is closed when
// the test ends. The pool is pinned to one connection because every new
// connection to ":memory:" would see an empty database.
func OpenSQLite(tb testing.TB) *sql.DB {
	tb.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(tb, err, "opening in-memory sqlite")
	db.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = db.Close() })
	return db
}

// ExecAll runs each statement in order, failing the test on the first error.
func ExecAll(tb testing.TB, db *sql.DB, statements ...string) {
	tb.Helper()

	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(tb, err, "executing %q", stmt)
	}
}

// SeedCustomers creates a customers table with the rows of CreateCustomerFrame.
func SeedCustomers(tb testing.TB, db *sql.DB) {
	tb.Helper()

	ExecAll(tb, db,
		`CREATE TABLE customers (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			age INTEGER,
			salary REAL,
			active BOOLEAN
		)`,
		`INSERT INTO customers (id, name, email, age, salary, active) VALUES
			(1, 'Alice', 'alice@example.com', 25, 49999.0, 1),
			(2, 'Bob', 'bob@example.com', 17, 50000.0, 0),
			(3, 'Carol', NULL, 30, NULL, 1),
			(4, 'Dave', 'dave@example.com', 22, 120000.0, 1)`,
	)
}
