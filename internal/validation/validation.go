package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrSeasonEmpty is returned when a season label is empty or whitespace-only after trim.
var ErrSeasonEmpty = errors.New("season label is required")

// ErrSeasonTooLong is returned when a season label exceeds the maximum length.
var ErrSeasonTooLong = errors.New("season label too long")

// ErrSeasonInvalidChars is returned when a season label contains disallowed characters.
var ErrSeasonInvalidChars = errors.New("season label contains invalid characters")

// ErrUnknownPage is returned when a page name is not one of the dashboard pages.
var ErrUnknownPage = errors.New("unknown dashboard page")

// ValidateSeason trims the input, enforces the maximum length (maxLen in
// runes), and restricts to letters (Unicode), digits, space and hyphen.
// Returns the trimmed label or an error suitable for 400 INVALID_SEASON
// responses. Matching against observed season values is left to the caller.
func ValidateSeason(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrSeasonEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrSeasonTooLong
	}
	for _, c := range r {
		if !isAllowedSeasonRune(c) {
			return "", ErrSeasonInvalidChars
		}
	}
	return s, nil
}

// isAllowedSeasonRune returns true for letters (Unicode), digits, space, hyphen.
func isAllowedSeasonRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	return r == ' ' || r == '-'
}

// Pages are the five dashboard views, in sidebar order.
var Pages = []string{"intro", "weather", "stations", "map", "recommendations"}

// ValidatePage returns the canonical page name, defaulting to intro when
// empty. Unknown names yield ErrUnknownPage.
func ValidatePage(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "intro", nil
	}
	for _, p := range Pages {
		if s == p {
			return p, nil
		}
	}
	return "", ErrUnknownPage
}
