package format

import (
	"strconv"
	"strings"
	"unicode"
)

// Ellipsis is the single marker rune appended to shortened labels.
const Ellipsis = '…'

// ShortenLabel returns s unchanged when it fits within max runes.
// Otherwise it returns the first max-1 runes with trailing whitespace
// trimmed, followed by a single ellipsis rune. Idempotent: a label that
// already fits (including one previously shortened) is returned as-is.
func ShortenLabel(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	head := strings.TrimRightFunc(string(r[:max-1]), unicode.IsSpace)
	return head + string(Ellipsis)
}

// CompactNumber renders n in abbreviated form for display metrics:
// 950 -> "950", 12300 -> "12.3K", 4560000 -> "4.56M". One decimal place
// below 100 of the unit, two below 10, none otherwise.
func CompactNumber(n float64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	suffix := ""
	switch {
	case n >= 1e9:
		n /= 1e9
		suffix = "B"
	case n >= 1e6:
		n /= 1e6
		suffix = "M"
	case n >= 1e3:
		n /= 1e3
		suffix = "K"
	}
	var s string
	switch {
	case suffix == "":
		s = strconv.FormatFloat(n, 'f', -1, 64)
	case n < 10:
		s = trimZeros(strconv.FormatFloat(n, 'f', 2, 64))
	case n < 100:
		s = trimZeros(strconv.FormatFloat(n, 'f', 1, 64))
	default:
		s = strconv.FormatFloat(n, 'f', 0, 64)
	}
	if neg {
		s = "-" + s
	}
	return s + suffix
}

// trimZeros drops a trailing ".0" / ".00" fraction left by fixed-precision formatting.
func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
