package security

import (
	"strings"
	"testing"
)

func TestNewRawTokenShape(t *testing.T) {
	raw := NewRawToken()
	if len(raw) != 64 {
		t.Fatalf("raw token length = %d, want 64", len(raw))
	}
	if strings.Contains(raw, "-") {
		t.Fatalf("raw token contains dashes: %q", raw)
	}
}

func TestNewRawTokenUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		raw := NewRawToken()
		if seen[raw] {
			t.Fatalf("duplicate raw token after %d draws", i)
		}
		seen[raw] = true
	}
}

func TestEncodeDeterministic(t *testing.T) {
	o := NewOpaqueTokens("test-secret")
	raw := NewRawToken()
	first := o.Encode(raw)
	second := o.Encode(raw)
	if first != second {
		t.Fatalf("Encode is not deterministic: %q vs %q", first, second)
	}
	if len(first) != 43 {
		t.Fatalf("encoded length = %d, want 43", len(first))
	}
}

func TestEncodeDependsOnSecret(t *testing.T) {
	raw := NewRawToken()
	a := NewOpaqueTokens("secret-a").Encode(raw)
	b := NewOpaqueTokens("secret-b").Encode(raw)
	if a == b {
		t.Fatal("different secrets produced the same encoding")
	}
}

func TestIssueProducesDistinctTokens(t *testing.T) {
	o := NewOpaqueTokens("test-secret")
	if o.Issue() == o.Issue() {
		t.Fatal("two issued tokens collided")
	}
}
