package db

import (
	"strings"
	"testing"
)

func TestSchemaIsIdempotent(t *testing.T) {
	for i, stmt := range schema {
		if !strings.Contains(stmt, "IF NOT EXISTS") {
			t.Fatalf("statement %d is not idempotent: %s", i, stmt)
		}
	}
}
