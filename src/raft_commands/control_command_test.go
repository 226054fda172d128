package raft_commands

import (
	"strings"
	"testing"
)

func TestParseControlKind(t *testing.T) {
	t.Run("parses every kind regardless of case", func(t *testing.T) {
		for kind := Speed; kind <= Start; kind++ {
			for _, name := range []string{kind.String(), strings.ToLower(kind.String())} {
				parsed, ok := ParseControlKind(name)
				if !ok || parsed != kind {
					t.Errorf("expected %s to parse as %d, got %d (%t)", name, kind, parsed, ok)
				}
			}
		}
	})

	t.Run("rejects unknown kinds", func(t *testing.T) {
		for _, name := range []string{"", "UNKNOWN", "reboot"} {
			if _, ok := ParseControlKind(name); ok {
				t.Errorf("expected %q to be rejected", name)
			}
		}
	})
}
