package store

import (
	"database/sql"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
)

// driverName is the sqlite3 driver with the store's SQL functions attached.
const driverName = "sqlite3_inkwell"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", foldCase, true)
		},
	})
}

// foldCase is the Unicode case folding used for case-insensitive matching.
// SQLite's own LIKE and NOCASE only fold ASCII.
func foldCase(s string) string {
	return cases.Fold().String(s)
}
