package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// punctuation maps typographic punctuation left over by NFKC to ASCII.
var punctuation = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
	"‘", "'", "’", "'", "‚", "'", "`", "'",
	"–", "-", "—", " - ", "−", "-",
)

// normalizeText applies NFKC and maps typographic punctuation to ASCII.
func normalizeText(s string) string {
	return squeezeWhitespace(punctuation.Replace(norm.NFKC.String(s)))
}

// narrowText folds full-width forms to their half-width equivalents.
func narrowText(s string) string {
	return width.Narrow.String(s)
}

// splitCJK puts a space around every CJK character and CJK punctuation mark
// so that each one is a token of its own.
func splitCJK(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		if isCJK(r) {
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return squeezeWhitespace(b.String())
}

// squeezeWhitespace trims s and collapses inner whitespace runs to one space.
func squeezeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isCJK(r rune) bool {
	switch {
	case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul):
		return true
	case r >= 0x3000 && r <= 0x303f: // CJK symbols and punctuation
		return true
	case r >= 0xff01 && r <= 0xff0f, r >= 0xff1a && r <= 0xff20: // full-width punctuation
		return true
	}
	return false
}
