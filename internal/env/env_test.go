package env

import (
	"testing"
)

func TestParseBool(t *testing.T) {
	tests := []struct {
		in    string
		want  bool
		valid bool
	}{
		{"1", true, true},
		{"true", true, true},
		{"True", true, true},
		{" yes ", true, true},
		{"0", false, true},
		{"false", false, true},
		{"off", false, true},
		{"maybe", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		got, ok := ParseBool(tt.in)
		if ok != tt.valid {
			t.Errorf("ParseBool(%q) ok = %v, expected %v", tt.in, ok, tt.valid)
		}
		if got != tt.want {
			t.Errorf("ParseBool(%q) = %v, expected %v", tt.in, got, tt.want)
		}
	}
}

func TestLookupFunc_ValueTreatsBlankAsUnset(t *testing.T) {
	lookup := FromMap(map[string]string{"A": "  ", "B": " x "})

	if _, ok := lookup.Value("A"); ok {
		t.Error("Expected blank value to be treated as unset")
	}
	if v, ok := lookup.Value("B"); !ok || v != "x" {
		t.Errorf("Expected trimmed value x, got %q (ok=%v)", v, ok)
	}
	if _, ok := lookup.Value("C"); ok {
		t.Error("Expected missing key to be unset")
	}

	var nilLookup LookupFunc
	if _, ok := nilLookup.Value("A"); ok {
		t.Error("Expected nil lookup to report unset")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CHILLM_TEST_STR", "hello")
	t.Setenv("CHILLM_TEST_INT", "42")
	t.Setenv("CHILLM_TEST_BAD_INT", "forty")
	t.Setenv("CHILLM_TEST_BOOL", "on")

	if got := GetEnvOrDefault("CHILLM_TEST_STR", "x"); got != "hello" {
		t.Errorf("Expected hello, got %s", got)
	}
	if got := GetEnvOrDefault("CHILLM_TEST_MISSING", "x"); got != "x" {
		t.Errorf("Expected default x, got %s", got)
	}
	if got := GetEnvIntOrDefault("CHILLM_TEST_INT", 1); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
	if got := GetEnvIntOrDefault("CHILLM_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("Expected default 7 for unparsable int, got %d", got)
	}
	if got := GetEnvBoolOrDefault("CHILLM_TEST_BOOL", false); !got {
		t.Error("Expected true for 'on'")
	}
}
