package pipeline

import (
	"context"
	"reflect"
	"testing"
)

func TestSplitEnglish(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello there. How are you? Fine.", []string{"Hello there.", "How are you?", "Fine."}},
		{"Wait... what? no way.", []string{"Wait... what? no way."}},
		{"He said \"Stop.\" Then left.", []string{"He said \"Stop.\"", "Then left."}},
		{"Pi is 3.14 today. ¶0 agrees.", []string{"Pi is 3.14 today.", "¶0 agrees."}},
		{"no punctuation at all", []string{"no punctuation at all"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := splitEnglish(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitEnglish() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitChinese(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"你好。今天天气很好！你呢？", []string{"你好。", "今天天气很好！", "你呢？"}},
		{"他说：“走吧。”然后走了", []string{"他说：“走吧。”", "然后走了"}},
		{"没有标点", []string{"没有标点"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := splitChinese(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitChinese() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSentenceSplitterLengthGate(t *testing.T) {
	ctx := context.Background()

	t.Run("ShortSegmentKept", func(t *testing.T) {
		stage, err := newSentenceSplitter(Settings{SourceLang: "en", MaxSentLen: 10})
		if err != nil {
			t.Fatalf("newSentenceSplitter failed: %v", err)
		}
		out, _ := stage.Process(ctx, []string{"One. Two. Three."})
		if len(out) != 1 {
			t.Errorf("Process() = %q, want one segment", out)
		}
	})

	t.Run("LongSegmentSplit", func(t *testing.T) {
		stage, _ := newSentenceSplitter(Settings{SourceLang: "en", MaxSentLen: 2})
		out, _ := stage.Process(ctx, []string{"One. Two. Three."})
		if want := []string{"One.", "Two.", "Three."}; !reflect.DeepEqual(out, want) {
			t.Errorf("Process() = %q, want %q", out, want)
		}
	})

	t.Run("ChineseCountsRunesWithoutSpaces", func(t *testing.T) {
		stage, _ := newSentenceSplitter(Settings{SourceLang: "zh", MaxSentLen: 6})
		out, _ := stage.Process(ctx, []string{"你 好 。 再 见 。"})
		if len(out) != 1 {
			t.Errorf("Process() = %q, want one segment", out)
		}
		out, _ = stage.Process(ctx, []string{"你好。再见了朋友。"})
		if want := []string{"你好。", "再见了朋友。"}; !reflect.DeepEqual(out, want) {
			t.Errorf("Process() = %q, want %q", out, want)
		}
	})

	t.Run("DefaultMaxLen", func(t *testing.T) {
		stage, _ := newSentenceSplitter(Settings{SourceLang: "en"})
		if got := stage.(*sentenceSplitter).maxLen; got != DefaultMaxSentLen {
			t.Errorf("maxLen = %d, want %d", got, DefaultMaxSentLen)
		}
	})
}

func TestJoinStage(t *testing.T) {
	out, err := joinStage{}.Process(context.Background(), []string{"a.", "b."})
	if err != nil || !reflect.DeepEqual(out, []string{"a. b."}) {
		t.Errorf("Process() = %q, %v", out, err)
	}
}
