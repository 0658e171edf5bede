package terms

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is a half-open byte range [Start, End) into the scanned text.
type Span struct {
	Start int
	End   int
}

// node is one state of the term trie. A term ends at a node when terminal is set.
type node struct {
	children map[rune]*node
	terminal bool
}

// Matcher is a mutable trie over normalized source terms. It finds
// non-overlapping, longest-first matches in arbitrary text.
//
// Matcher is not safe for concurrent use; Dictionary serializes access to it.
type Matcher struct {
	root *node
	size int
}

// NewMatcher creates a matcher seeded with the given terms.
func NewMatcher(terms ...string) *Matcher {
	m := &Matcher{root: &node{}}
	for _, term := range terms {
		m.Add(term)
	}
	return m
}

// Normalize returns the matching key for a source term: surrounding
// whitespace trimmed, every rune lower-cased and every space folded to ' '.
func Normalize(term string) string {
	return strings.Map(foldRune, strings.TrimSpace(term))
}

// foldRune is the per-rune normalization shared by indexing and scanning.
// It maps one rune to one rune so offsets in the original text stay valid.
func foldRune(r rune) rune {
	if unicode.IsSpace(r) {
		return ' '
	}
	return unicode.ToLower(r)
}

// Add inserts the normalized form of term. Empty terms are ignored.
func (m *Matcher) Add(term string) {
	key := Normalize(term)
	if key == "" {
		return
	}

	n := m.root
	for _, r := range key {
		child, ok := n.children[r]
		if !ok {
			if n.children == nil {
				n.children = make(map[rune]*node)
			}
			child = &node{}
			n.children[r] = child
		}
		n = child
	}

	if !n.terminal {
		n.terminal = true
		m.size++
	}
}

// Remove deletes the normalized form of term and prunes the branch it
// leaves behind. Terms sharing a prefix with it are kept intact.
func (m *Matcher) Remove(term string) {
	key := Normalize(term)
	if key == "" {
		return
	}
	m.remove(m.root, []rune(key))
}

// remove clears the terminal mark at the end of path below n and reports
// whether n itself is now a dead end that its parent should drop.
func (m *Matcher) remove(n *node, path []rune) bool {
	if len(path) == 0 {
		if !n.terminal {
			return false
		}
		n.terminal = false
		m.size--
		return len(n.children) == 0
	}

	child, ok := n.children[path[0]]
	if !ok {
		return false
	}
	if m.remove(child, path[1:]) {
		delete(n.children, path[0])
	}
	return !n.terminal && len(n.children) == 0
}

// Contains reports whether term is indexed.
func (m *Matcher) Contains(term string) bool {
	key := Normalize(term)
	if key == "" {
		return false
	}
	n := m.root
	for _, r := range key {
		child, ok := n.children[r]
		if !ok {
			return false
		}
		n = child
	}
	return n.terminal
}

// Len returns the number of indexed terms.
func (m *Matcher) Len() int {
	return m.size
}

// FindAll scans text left to right and returns the spans of protected terms.
// At each position the longest indexed term wins; scanning resumes right
// after a match, otherwise one rune further.
func (m *Matcher) FindAll(text string) []Span {
	var spans []Span
	for start := 0; start < len(text); {
		if end := m.longestAt(text, start); end > start {
			spans = append(spans, Span{Start: start, End: end})
			start = end
			continue
		}
		_, width := utf8.DecodeRuneInString(text[start:])
		start += width
	}
	return spans
}

// longestAt returns the end offset of the longest term starting at start,
// or -1 when none starts there.
func (m *Matcher) longestAt(text string, start int) int {
	end := -1
	n := m.root
	for i := start; i < len(text); {
		r, width := utf8.DecodeRuneInString(text[i:])
		child, ok := n.children[foldRune(r)]
		if !ok {
			break
		}
		i += width
		n = child
		if n.terminal {
			end = i
		}
	}
	return end
}
