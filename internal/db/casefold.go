package db

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"
)

// CaseFold is the name of the SQL function that lowercases text with Go's
// Unicode rules. SQLite's own LOWER and LIKE only fold ASCII letters.
const CaseFold = "casefold"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(CaseFold, 1, casefold)
}

func casefold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}
