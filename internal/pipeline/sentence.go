package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// DefaultMaxSentLen applies when max_sent_len is not configured.
const DefaultMaxSentLen = 100

// sentenceSplitter breaks long segments into sentences. Segments whose
// length does not exceed maxLen are passed through whole.
type sentenceSplitter struct {
	lang   string
	maxLen int
	length func(string) int
	split  func(string) []string
}

func newSentenceSplitter(settings Settings) (Stage, error) {
	s := &sentenceSplitter{lang: settings.SourceLang, maxLen: settings.MaxSentLen}
	if s.maxLen <= 0 {
		s.maxLen = DefaultMaxSentLen
	}

	switch settings.SourceLang {
	case "en":
		s.length = wordCount
		s.split = splitEnglish
	case "zh":
		s.length = runeCount
		s.split = splitChinese
	default:
		return nil, &ConfigError{
			Stage:   "sentence_split",
			Message: fmt.Sprintf("unsupported source language %q (supported: en, zh)", settings.SourceLang),
		}
	}
	return s, nil
}

func (s *sentenceSplitter) Name() string { return "sentence_split" }

func (s *sentenceSplitter) Process(_ context.Context, segments []string) ([]string, error) {
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if s.length(seg) <= s.maxLen {
			out = append(out, seg)
			continue
		}
		out = append(out, s.split(seg)...)
	}
	return out, nil
}

// joinStage merges all segments back into one.
type joinStage struct{}

func (joinStage) Name() string { return "sentence_join" }

func (joinStage) Process(_ context.Context, segments []string) ([]string, error) {
	return []string{strings.Join(segments, " ")}, nil
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// runeCount counts non-space runes; CJK text may arrive split into
// space-separated characters.
func runeCount(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '」', '』', '）', '》':
		return true
	}
	return false
}

// splitEnglish ends a sentence after a run of . ! ? (and closing quotes or
// brackets) followed by whitespace, unless the next word starts lower-case.
func splitEnglish(s string) []string {
	runes := []rune(s)
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		end := i + 1
		for end < len(runes) && (runes[end] == '.' || runes[end] == '!' || runes[end] == '?' || isClosing(runes[end])) {
			end++
		}
		next := end
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		if next == end || next == len(runes) || unicode.IsLower(runes[next]) {
			i = end - 1
			continue
		}
		sentences = appendSentence(sentences, runes[start:end])
		start = next
		i = next - 1
	}
	return appendSentence(sentences, runes[start:])
}

// splitChinese ends a sentence after a run of Chinese or ASCII sentence-final
// punctuation and any closing quotes.
func splitChinese(s string) []string {
	runes := []rune(s)
	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '。', '！', '？', '!', '?', '…':
		default:
			continue
		}
		end := i + 1
		for end < len(runes) && (strings.ContainsRune("。！？!?…", runes[end]) || isClosing(runes[end])) {
			end++
		}
		sentences = appendSentence(sentences, runes[start:end])
		start = end
		i = end - 1
	}
	return appendSentence(sentences, runes[start:])
}

func appendSentence(sentences []string, runes []rune) []string {
	if sentence := strings.TrimSpace(string(runes)); sentence != "" {
		sentences = append(sentences, sentence)
	}
	return sentences
}
