// Package cyrcodec adapts the Windows-1251 code page for mojibake recovery.
//
// Both directions are total: decoding substitutes U+FFFD for the few
// undefined bytes, and encoding falls back to the raw code-point value for
// characters outside the page. The fallback matters because mojibake is
// produced by readers that project legacy bytes straight onto Unicode code
// points (ID3v2 "Latin-1" text, for example), so projecting the code points
// back onto bytes is what recovers the original legacy byte sequence.
package cyrcodec

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// substituteByte replaces runes that map to no legacy byte at all.
const substituteByte = '?'

// Encode converts text to Windows-1251 bytes, one byte per rune.
//
// Runes covered by the code page use their table position. Runes outside
// the page but below U+0100 use the code-point value itself (the inverse of
// a byte-to-code-point projection). Everything else becomes substituteByte.
func Encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := charmap.Windows1251.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		if r < 0x100 {
			out = append(out, byte(r))
			continue
		}
		out = append(out, substituteByte)
	}
	return out
}

// Decode converts Windows-1251 bytes to text. The second result reports
// whether any byte had no assigned character and was replaced with U+FFFD.
func Decode(b []byte) (string, bool) {
	var sb strings.Builder
	sb.Grow(len(b))
	lossy := false
	for _, c := range b {
		r := charmap.Windows1251.DecodeByte(c)
		if r == utf8.RuneError {
			lossy = true
		}
		sb.WriteRune(r)
	}
	return sb.String(), lossy
}
