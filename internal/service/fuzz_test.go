package service

import (
	"sort"
	"testing"
)

func enumerateAll(t *testing.T, e *RuleEnumerator, rule string) []string {
	t.Helper()
	var out []string
	if err := e.Enumerate(rule, func(s string) { out = append(out, s) }); err != nil {
		t.Fatalf("Enumerate(%q) failed: %v", rule, err)
	}
	sort.Strings(out)
	return out
}

func TestRuleEnumeratorCount(t *testing.T) {
	e := NewRuleEnumerator(3)

	tests := []struct {
		rule  string
		count uint64
	}{
		{"abc", 1},
		{"[a-z]", 26},
		{"[a-z][0-9]", 260},
		{"(a|b)[0-1]{2}", 8},
		{"ab?", 2},
		{"a{2,4}", 3},
		{"a*", 4},
		{"a+", 3},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			got, err := e.Count(tt.rule)
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if got != tt.count {
				t.Errorf("Count(%q) = %d, want %d", tt.rule, got, tt.count)
			}
		})
	}
}

func TestRuleEnumeratorEnumerate(t *testing.T) {
	e := NewRuleEnumerator(3)

	t.Run("char class", func(t *testing.T) {
		got := enumerateAll(t, e, "[a-c]")
		want := []string{"a", "b", "c"}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	})

	t.Run("alternation and repeat", func(t *testing.T) {
		got := enumerateAll(t, e, "(x|y){2}")
		want := []string{"xx", "xy", "yx", "yy"}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	})

	t.Run("optional suffix", func(t *testing.T) {
		got := enumerateAll(t, e, "ab?")
		if len(got) != 2 || got[0] != "a" || got[1] != "ab" {
			t.Fatalf("got %v, want [a ab]", got)
		}
	})

	t.Run("unbounded star is capped", func(t *testing.T) {
		got := enumerateAll(t, e, "a*")
		if len(got) != 4 {
			t.Fatalf("expected 4 strings with repeat limit 3, got %v", got)
		}
		if got[len(got)-1] != "aaa" {
			t.Errorf("longest expansion should be aaa, got %q", got[len(got)-1])
		}
	})

	t.Run("count matches enumeration", func(t *testing.T) {
		rule := "(a|bc)[0-2]?"
		count, err := e.Count(rule)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		got := enumerateAll(t, e, rule)
		if uint64(len(got)) != count {
			t.Errorf("Count = %d but enumeration produced %d strings", count, len(got))
		}
	})
}

func TestRuleEnumeratorRejectsUnsupported(t *testing.T) {
	e := NewRuleEnumerator(3)
	if _, err := e.Count("a.b"); err == nil {
		t.Error("wildcard metacharacter should not be enumerable")
	}
	if err := e.Enumerate("a.b", func(string) {}); err == nil {
		t.Error("wildcard metacharacter should not be enumerable")
	}
	if _, err := e.Count("a["); err == nil {
		t.Error("malformed rule should fail to parse")
	}
}
