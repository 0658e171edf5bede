package terms

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// DefaultMarker is the protection marker used when none is configured.
const DefaultMarker = "¶"

// Masked is the result of masking one request. Terms[i] is the original-case
// text hidden behind placeholder i.
type Masked struct {
	Text      string   `json:"text"`
	Terms     []string `json:"terms"`
	Collision bool     `json:"collision,omitempty"`
}

// DemaskStats counts what happened to the placeholders found while demasking.
type DemaskStats struct {
	Replaced   int `json:"replaced"`
	OutOfRange int `json:"out_of_range"`
	Stale      int `json:"stale"`
}

// Anomalies returns the number of placeholders that could not be restored.
func (s DemaskStats) Anomalies() int {
	return s.OutOfRange + s.Stale
}

// Codec rewrites protected spans into marker+index placeholders and back.
type Codec struct {
	marker      string
	markerRunes map[rune]bool
	placeholder *regexp.Regexp
}

// NewCodec builds a codec for the given marker. The marker must not contain
// digits or whitespace, otherwise placeholders could not be told apart.
func NewCodec(marker string) (*Codec, error) {
	if marker == "" {
		return nil, errors.New("protection marker must not be empty")
	}

	runes := make(map[rune]bool)
	var class strings.Builder
	for _, r := range marker {
		if unicode.IsDigit(r) || unicode.IsSpace(r) {
			return nil, fmt.Errorf("protection marker %q must not contain digits or whitespace", marker)
		}
		if !runes[r] {
			runes[r] = true
			fmt.Fprintf(&class, `\x{%X}`, r)
		}
	}

	// Translation may duplicate the marker or pad it with spaces, so any run
	// of marker runes and whitespace in front of the digits is accepted.
	re, err := regexp.Compile(`[` + class.String() + `\s]+[0-9]+`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile placeholder pattern: %w", err)
	}

	return &Codec{
		marker:      marker,
		markerRunes: runes,
		placeholder: re,
	}, nil
}

// Marker returns the configured protection marker.
func (c *Codec) Marker() string {
	return c.marker
}

// Collides reports whether text already contains the marker verbatim.
func (c *Codec) Collides(text string) bool {
	return strings.Contains(text, c.marker)
}

// Mask replaces each span, in order, with marker+index. If the marker already
// occurs in text nothing is masked and the text is returned unchanged.
func (c *Codec) Mask(text string, spans []Span) Masked {
	if c.Collides(text) {
		return Masked{Text: text, Collision: true}
	}
	if len(spans) == 0 {
		return Masked{Text: text}
	}

	var b strings.Builder
	b.Grow(len(text))
	matched := make([]string, 0, len(spans))
	prev := 0
	for i, span := range spans {
		b.WriteString(text[prev:span.Start])
		b.WriteString(c.marker)
		b.WriteString(strconv.Itoa(i))
		matched = append(matched, text[span.Start:span.End])
		prev = span.End
	}
	b.WriteString(text[prev:])

	return Masked{Text: b.String(), Terms: matched}
}

// Demask substitutes surviving placeholders with the target of the term they
// stand for. lookup resolves an original-case source term to its target.
//
// A run without any marker rune is a plain numeral and stays as is. Whitespace
// before the first marker rune of a run belongs to the surrounding text and
// is kept. Placeholders with an unknown index or a term lookup misses are
// left untouched and counted in the returned stats.
func (c *Codec) Demask(text string, terms []string, lookup func(string) (string, bool)) (string, DemaskStats) {
	var stats DemaskStats
	locs := c.placeholder.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text, stats
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		digits := end
		for digits > start && text[digits-1] >= '0' && text[digits-1] <= '9' {
			digits--
		}

		markerAt := strings.IndexFunc(text[start:digits], func(r rune) bool {
			return c.markerRunes[r]
		})
		if markerAt < 0 {
			continue
		}

		index, err := strconv.Atoi(text[digits:end])
		if err != nil || index >= len(terms) {
			stats.OutOfRange++
			continue
		}
		target, ok := lookup(terms[index])
		if !ok {
			stats.Stale++
			continue
		}

		b.WriteString(text[prev : start+markerAt])
		b.WriteString(target)
		prev = end
		stats.Replaced++
	}
	b.WriteString(text[prev:])

	return b.String(), stats
}
