// ABOUTME: Tests for version constants
// ABOUTME: Ensures product identity strings are usable in hello messages
package version

import (
	"strings"
	"testing"
)

func TestIdentityDefined(t *testing.T) {
	tests := map[string]string{
		"Version":      Version,
		"Product":      Product,
		"Manufacturer": Manufacturer,
	}
	for name, value := range tests {
		if strings.TrimSpace(value) == "" {
			t.Errorf("%s should not be empty", name)
		}
		if len(value) > 64 {
			t.Errorf("%s is unreasonably long: %d", name, len(value))
		}
	}
}

func TestVersionIsSemver(t *testing.T) {
	parts := strings.Split(Version, ".")
	if len(parts) != 3 {
		t.Fatalf("expected major.minor.patch, got %q", Version)
	}
	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			t.Errorf("non-numeric component %q in %q", p, Version)
		}
	}
}

func TestString(t *testing.T) {
	want := Product + " " + Version
	if got := String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
