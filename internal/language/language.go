package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Full word forms and bibliographic ISO 639-2 codes that BCP 47 parsing does
// not accept.
var aliases = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
	"turkish":    "tr",
	"fre":        "fr",
	"ger":        "de",
	"chi":        "zh",
	"dut":        "nl",
}

// Parse resolves a language code, BCP 47 tag, or English language name to a
// canonical tag. Undetermined input is an error.
func Parse(code string) (language.Tag, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return language.Und, fmt.Errorf("empty language")
	}
	if alias, ok := aliases[strings.ToLower(trimmed)]; ok {
		trimmed = alias
	}
	tag, err := language.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err != nil {
		return language.Und, fmt.Errorf("language %q: %w", code, err)
	}
	if tag == language.Und {
		return language.Und, fmt.Errorf("language %q is undetermined", code)
	}
	return tag, nil
}

// Normalize returns the canonical BCP 47 string for a target language
// ("EN" -> "en", "pt_br" -> "pt-BR", "French" -> "fr").
func Normalize(code string) (string, error) {
	tag, err := Parse(code)
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}

// ToISO2 converts any recognized language code or word to ISO 639-1 (2-letter).
// Returns empty string for unrecognized input or languages without a
// two-letter code.
func ToISO2(code string) string {
	tag, err := Parse(code)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	if s := base.String(); len(s) == 2 {
		return s
	}
	return ""
}

// ToISO3 converts any recognized language code to ISO 639-2 (3-letter).
// Returns "und" for unrecognized input.
func ToISO3(code string) string {
	tag, err := Parse(code)
	if err != nil {
		return "und"
	}
	base, _ := tag.Base()
	return base.ISO3()
}

// DisplayName returns the English name for a language code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	tag, err := Parse(code)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeList deduplicates and normalizes a list of language codes to ISO 639-1.
// Unrecognized entries are dropped.
func NormalizeList(languages []string) []string {
	if len(languages) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(languages))
	seen := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		code := ToISO2(lang)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		normalized = append(normalized, code)
	}
	return normalized
}
