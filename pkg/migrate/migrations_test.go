package migrate

import "testing"

func TestMigrationsDirectoryIsValid(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("migration validation failed: %v", err)
	}
}
