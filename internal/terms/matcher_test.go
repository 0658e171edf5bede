package terms

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello world"},
		{"  I'm  ", "i'm"},
		{"New\tYork", "new york"},
		{"你好", "你好"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatcherFindAll(t *testing.T) {
	m := NewMatcher("new", "New York", "new york city", "你好")

	t.Run("LongestMatchWins", func(t *testing.T) {
		text := "I love New York City and new things"
		want := []Span{{Start: 7, End: 20}, {Start: 25, End: 28}}
		if got := m.FindAll(text); !reflect.DeepEqual(got, want) {
			t.Errorf("FindAll() = %v, want %v", got, want)
		}
		if got := text[7:20]; got != "New York City" {
			t.Errorf("span text = %q", got)
		}
	})

	t.Run("ShorterTermWhenLongerIncomplete", func(t *testing.T) {
		text := "new york cit"
		want := []Span{{Start: 0, End: 8}}
		if got := m.FindAll(text); !reflect.DeepEqual(got, want) {
			t.Errorf("FindAll() = %v, want %v", got, want)
		}
	})

	t.Run("ByteOffsetsForMultibyteText", func(t *testing.T) {
		text := "说你好吗"
		want := []Span{{Start: 3, End: 9}}
		if got := m.FindAll(text); !reflect.DeepEqual(got, want) {
			t.Errorf("FindAll() = %v, want %v", got, want)
		}
	})

	t.Run("WhitespaceFolded", func(t *testing.T) {
		text := "NEW\tYORK"
		want := []Span{{Start: 0, End: 8}}
		if got := m.FindAll(text); !reflect.DeepEqual(got, want) {
			t.Errorf("FindAll() = %v, want %v", got, want)
		}
	})

	t.Run("NoMatch", func(t *testing.T) {
		if got := m.FindAll("nothing here"); len(got) != 0 {
			t.Errorf("FindAll() = %v, want none", got)
		}
		if got := m.FindAll(""); len(got) != 0 {
			t.Errorf("FindAll(\"\") = %v, want none", got)
		}
	})
}

func TestMatcherAddRemove(t *testing.T) {
	t.Run("AddIsIdempotent", func(t *testing.T) {
		m := NewMatcher()
		m.Add("Hello")
		m.Add("hello")
		m.Add("  HELLO ")
		m.Add("")
		if m.Len() != 1 {
			t.Errorf("Len() = %d, want 1", m.Len())
		}
		if !m.Contains("hElLo") {
			t.Error("Contains(hElLo) = false")
		}
	})

	t.Run("RemoveKeepsSharedPrefix", func(t *testing.T) {
		m := NewMatcher("ab", "abc")
		m.Remove("ABC")

		if m.Contains("abc") {
			t.Error("abc still indexed after Remove")
		}
		if !m.Contains("ab") {
			t.Error("ab lost after removing abc")
		}
		if m.Len() != 1 {
			t.Errorf("Len() = %d, want 1", m.Len())
		}
		b := m.root.children['a'].children['b']
		if len(b.children) != 0 {
			t.Errorf("dead branch below ab not pruned: %d children", len(b.children))
		}
		if got := m.FindAll("abc"); !reflect.DeepEqual(got, []Span{{Start: 0, End: 2}}) {
			t.Errorf("FindAll(abc) = %v", got)
		}
	})

	t.Run("RemoveInnerTermKeepsLonger", func(t *testing.T) {
		m := NewMatcher("ab", "abc")
		m.Remove("ab")

		if m.Contains("ab") {
			t.Error("ab still indexed after Remove")
		}
		if !m.Contains("abc") {
			t.Error("abc lost after removing ab")
		}
		if got := m.FindAll("ab abc"); !reflect.DeepEqual(got, []Span{{Start: 3, End: 6}}) {
			t.Errorf("FindAll() = %v", got)
		}
	})

	t.Run("RemoveLastTermPrunesToRoot", func(t *testing.T) {
		m := NewMatcher("hello")
		m.Remove("hello")
		if len(m.root.children) != 0 {
			t.Errorf("root keeps %d children", len(m.root.children))
		}
		if m.Len() != 0 {
			t.Errorf("Len() = %d, want 0", m.Len())
		}
	})

	t.Run("RemoveAbsentIsNoop", func(t *testing.T) {
		m := NewMatcher("hello")
		m.Remove("help")
		m.Remove("hello world")
		m.Remove("")
		if !m.Contains("hello") || m.Len() != 1 {
			t.Error("Remove of absent term changed the matcher")
		}
	})
}
