// internal/db/test_helpers.go
package db

import (
	"fmt"
	"testing"
)

func ClearTestDBTables(t *testing.T, tableNames ...string) {
	if DB == nil {
		t.Skip("DB not initialized, skipping table clear")
		return
	}
	for _, table := range tableNames {
		// DELETE instead of TRUNCATE so foreign keys stay happy in tests.
		_, err := DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Fatalf("Failed to clear table %s: %v", table, err)
		}
	}
}
