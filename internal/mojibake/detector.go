// Package mojibake decides whether a string is Windows-1251 Cyrillic text
// that was mis-decoded as a Latin code page, and recovers the intended text.
package mojibake

import (
	"strings"
	"unicode/utf8"

	"cyrfix/internal/cyrcodec"
)

// DefaultThreshold is the acceptance score used when the caller has no
// stronger opinion. It is a precision/recall dial: raising it removes
// repairs, never adds them.
const DefaultThreshold = 0.2

const (
	weightCyrillic   = 1.0
	weightDiacritics = 0.8
)

// latinDiacritics are accented Latin letters common in Western-European
// text. Their presence in the original string argues against the corruption
// hypothesis: French or German titles round-tripped through cp1251 also
// come out looking spuriously Cyrillic.
var latinDiacritics = map[rune]struct{}{
	'ä': {}, 'ö': {}, 'ü': {}, 'ß': {}, 'Ä': {}, 'Ö': {}, 'Ü': {},
	'é': {}, 'è': {}, 'ê': {}, 'ë': {},
	'á': {}, 'à': {}, 'â': {}, 'å': {},
	'í': {}, 'ì': {}, 'î': {},
	'ó': {}, 'ò': {}, 'ô': {},
	'ú': {}, 'ù': {}, 'û': {},
}

// Repair reports whether text is recoverable mojibake and returns the
// corrected string when the confidence score exceeds threshold.
//
// Text containing any rune from the Cyrillic Unicode block (U+0400–U+04FF)
// is never touched: already-correct text must survive a second run
// unchanged, and partially-correct mixed text is left alone rather than
// risked. The repair itself re-encodes the string into legacy bytes and
// decodes those bytes as Windows-1251, which inverts the original
// mis-decode when the corruption hypothesis holds.
func Repair(text string, threshold float64) (string, bool) {
	if countCyrillic(text) > 0 {
		return "", false
	}

	decoded, _ := cyrcodec.Decode(cyrcodec.Encode(text))
	candidate := strings.TrimSpace(decoded)

	length := utf8.RuneCountInString(candidate)
	if length == 0 {
		return "", false
	}

	cyrRatio := float64(countCyrillic(candidate)) / float64(length)
	diacriticsRatio := float64(countDiacritics(text)) / float64(length)
	score := weightCyrillic*cyrRatio - weightDiacritics*diacriticsRatio

	if score > threshold {
		return candidate, true
	}
	return "", false
}

func isCyrillic(r rune) bool {
	return r >= 0x0400 && r <= 0x04FF
}

func countCyrillic(s string) int {
	n := 0
	for _, r := range s {
		if isCyrillic(r) {
			n++
		}
	}
	return n
}

func countDiacritics(s string) int {
	n := 0
	for _, r := range s {
		if _, ok := latinDiacritics[r]; ok {
			n++
		}
	}
	return n
}
