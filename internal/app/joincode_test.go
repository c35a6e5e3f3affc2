package app

import (
	"strings"
	"testing"
)

func TestNewJoinCode(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code := newJoinCode(8)
		if len(code) != 8 {
			t.Fatalf("len=%d want 8 (code=%q)", len(code), code)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("char %q outside alphabet (code=%q)", r, code)
			}
		}
		seen[code] = true
	}
	// 32^8 codes; 1000 draws colliding would point at a broken generator
	if len(seen) < 990 {
		t.Fatalf("suspicious collision rate: %d distinct of 1000", len(seen))
	}
}
