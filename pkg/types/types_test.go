package types

import "testing"

func TestCategoryValidation(t *testing.T) {
	for _, c := range Categories() {
		if !c.Valid() {
			t.Errorf("category %q reported invalid", c)
		}
		parsed, err := ParseCategory(string(c))
		if err != nil {
			t.Errorf("ParseCategory(%q) failed: %v", c, err)
		}
		if parsed != c {
			t.Errorf("ParseCategory(%q) = %q", c, parsed)
		}
	}

	for _, bad := range []string{"", "responses", "Personality", "knowledge-base"} {
		if Category(bad).Valid() {
			t.Errorf("category %q reported valid", bad)
		}
		if _, err := ParseCategory(bad); err == nil {
			t.Errorf("ParseCategory(%q) did not fail", bad)
		}
	}
}

func TestTierValidation(t *testing.T) {
	if got := Tiers(); len(got) != 3 || got[0] != TierMemory {
		t.Fatalf("unexpected tier order: %v", got)
	}

	for _, tier := range Tiers() {
		if !tier.Valid() {
			t.Errorf("tier %q reported invalid", tier)
		}
	}

	if _, err := ParseTier("l1"); err == nil {
		t.Error("ParseTier accepted unknown tier")
	}
	if parsed, err := ParseTier("shared"); err != nil || parsed != TierShared {
		t.Errorf("ParseTier(shared) = %q, %v", parsed, err)
	}
}

func TestEstimateSize(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int64
	}{
		{"nil", nil, 0},
		{"bytes", []byte("hello"), 5},
		{"string", "hello world", 11},
		{"int", 42, 8},
		{"bool", true, 1},
		{"string map", map[string]string{"ab": "cd"}, 4},
		{"string slice", []string{"ab", "cdef"}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateSize(tt.value); got != tt.want {
				t.Errorf("EstimateSize(%v) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}

	// Fallback path must return something positive for arbitrary values.
	type opaque struct{ A, B int }
	if got := EstimateSize(opaque{1, 2}); got <= 0 {
		t.Errorf("EstimateSize fallback returned %d", got)
	}
}
