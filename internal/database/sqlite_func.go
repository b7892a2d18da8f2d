package database

import (
	"database/sql/driver"
	"strings"

	"golang.org/x/text/unicode/norm"
	"modernc.org/sqlite"
)

// sqliteLowerFunc folds text like strings.ToLower. SQLite's built-in LOWER
// only folds ASCII, so "École" would never match "école".
const sqliteLowerFunc = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(sqliteLowerFunc, 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return FoldCase(v), nil
	case []byte:
		return FoldCase(string(v)), nil
	default:
		return v, nil
	}
}

// FoldCase is the case folding applied by Lower on SQLite.
func FoldCase(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// Lower wraps a SQL expression in the dialect's Unicode-aware lower-case function.
func (db *DB) Lower(expr string) string {
	if db.dialect == DialectSQLite {
		return sqliteLowerFunc + "(" + expr + ")"
	}
	return "LOWER(CAST(" + expr + " AS TEXT))"
}
