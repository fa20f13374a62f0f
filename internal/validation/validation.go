package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrCityEmpty is returned when the city is empty or whitespace-only after trim.
var ErrCityEmpty = errors.New("city name required")

// ErrCityTooLong is returned when the city length exceeds Rules.MaxLen.
var ErrCityTooLong = errors.New("city name too long")

// ErrCityInvalidChars is returned under Rules.StrictChars when the city contains disallowed characters.
var ErrCityInvalidChars = errors.New("city name contains invalid characters")

// Rules tightens validation beyond the empty check. The zero value only rejects empty input,
// leaving every other string for the weather API to accept or reject.
type Rules struct {
	MaxLen      int  // in runes; 0 disables
	StrictChars bool // letters, digits, space, comma, hyphen, period, apostrophe
}

// ValidateCity trims the input and applies rules. Returns the trimmed city.
func ValidateCity(input string, rules Rules) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrCityEmpty
	}
	if rules.MaxLen > 0 && len([]rune(s)) > rules.MaxLen {
		return "", ErrCityTooLong
	}
	if rules.StrictChars {
		for _, c := range s {
			if !isAllowedCityRune(c) {
				return "", ErrCityInvalidChars
			}
		}
	}
	return s, nil
}

// isAllowedCityRune returns true for letters (Unicode), digits, space, comma, hyphen, period, apostrophe.
func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}
