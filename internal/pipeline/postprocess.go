package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// fullwidthPunctuation is the half-width to full-width mapping applied to
// Chinese output.
var fullwidthPunctuation = map[rune]rune{
	',': '，',
	'.': '。',
	'?': '？',
	';': '；',
	'(': '（',
	')': '）',
	':': '：',
	'!': '！',
}

func isASCIIAlnum(r rune) bool {
	return r < utf8.RuneSelf && (r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
}

// removeWhitespace drops every whitespace run whose neighbours on both sides
// are not ASCII letters or digits. Spaces inside Latin text survive, spaces
// between CJK characters do not.
func removeWhitespace(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(runes); {
		if !unicode.IsSpace(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}

		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		inner := i > 0 && j < len(runes)
		if !inner || isASCIIAlnum(runes[i-1]) || isASCIIAlnum(runes[j]) {
			b.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return b.String()
}

// chinesePunctuation turns half-width punctuation into its full-width form
// unless it touches an ASCII letter or digit, so "1.5" and "e.g" are kept.
func chinesePunctuation(s string) string {
	runes := []rune(s)
	out := make([]rune, len(runes))
	for i, r := range runes {
		out[i] = r
		full, ok := fullwidthPunctuation[r]
		if !ok {
			continue
		}
		if i > 0 && isASCIIAlnum(runes[i-1]) {
			continue
		}
		if i+1 < len(runes) && isASCIIAlnum(runes[i+1]) {
			continue
		}
		out[i] = full
	}
	return string(out)
}

// detruecase upper-cases the first letter of the text and of every word
// that follows sentence-final punctuation and whitespace.
func detruecase(s string) string {
	runes := []rune(s)
	sentenceStart, afterStop := true, false
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r):
			if sentenceStart {
				runes[i] = unicode.ToUpper(r)
			}
			sentenceStart, afterStop = false, false
		case r == '.' || r == '!' || r == '?':
			afterStop = true
		case unicode.IsSpace(r):
			if afterStop {
				sentenceStart = true
			}
		case unicode.IsPunct(r):
		default:
			sentenceStart, afterStop = false, false
		}
	}
	return string(runes)
}
