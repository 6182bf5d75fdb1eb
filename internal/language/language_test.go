package language

import (
	"testing"
)

func TestToISO2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// 2-letter codes pass through
		{"en", "en"},
		{"EN", "en"},
		{"es", "es"},
		// 3-letter codes convert
		{"eng", "en"},
		{"spa", "es"},
		{"fra", "fr"},
		{"fre", "fr"},
		{"ger", "de"},
		{"jpn", "ja"},
		{"chi", "zh"},
		{"dut", "nl"},
		// Word forms
		{"english", "en"},
		{"French", "fr"},
		{"GERMAN", "de"},
		// Regional tags
		{"pt-BR", "pt"},
		{"zh_Hant", "zh"},
		// Garbage
		{"not a language", ""},
		{"", ""},
		{" ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ToISO2(tt.input); got != tt.expected {
				t.Errorf("ToISO2(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestToISO3(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "eng"},
		{"fr", "fra"},
		{"de", "deu"},
		{"english", "eng"},
		{"", "und"},
		{"???", "und"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ToISO3(tt.input); got != tt.expected {
				t.Errorf("ToISO3(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"EN", "en"},
		{"pt_br", "pt-BR"},
		{"spanish", "es"},
		{" fr ", "fr"},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.input)
		if err != nil {
			t.Fatalf("Normalize(%q) returned error: %v", tt.input, err)
		}
		if got != tt.expected {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}

	for _, bad := range []string{"", "und", "12345678901"} {
		if _, err := Normalize(bad); err == nil {
			t.Errorf("Normalize(%q) expected error", bad)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "English"},
		{"spa", "Spanish"},
		{"french", "French"},
		{"", "Unknown"},
		{"???", "???"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := DisplayName(tt.input); got != tt.expected {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{"eng", "EN", "french", "", "fr", "bogus value"})
	want := []string{"en", "fr"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NormalizeList = %v, want %v", got, want)
		}
	}
	if NormalizeList(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}
