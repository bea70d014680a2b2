package postgres

import (
	"testing"

	"labbook/testutil"
)

func TestStoreDoesNotImportService(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Under("internal/core", "internal/backup", "cmd"), "stores sit below the service")
}
