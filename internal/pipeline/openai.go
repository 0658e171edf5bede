package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const defaultOpenAIModel = "gpt-4o-mini"

// openAIBackend translates through the chat completion API.
type openAIBackend struct {
	client      *openai.Client
	model       string
	temperature float32
	marker      string
}

func newOpenAIBackend(settings Settings) (*openAIBackend, error) {
	apiKey := settings.Translate.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, &ConfigError{Stage: "translate", Message: "openai method requires an API key"}
	}

	config := openai.DefaultConfig(apiKey)
	if settings.Translate.BaseURL != "" {
		config.BaseURL = settings.Translate.BaseURL
	}

	model := settings.Translate.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	temperature := settings.Translate.Temperature
	if temperature == 0 {
		temperature = 0.2
	}

	return &openAIBackend{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
		marker:      settings.Marker,
	}, nil
}

func (b *openAIBackend) Name() string { return "openai" }

// Translate sends all texts in one request and expects a JSON object with a
// "translations" array in the same order.
func (b *openAIBackend) Translate(ctx context.Context, texts []string, src, tgt string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}

	input, err := json.Marshal(texts)
	if err != nil {
		return nil, &BackendError{Backend: b.Name(), Message: "failed to encode request", Cause: err}
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: b.systemPrompt(src, tgt)},
			{Role: openai.ChatMessageRoleUser, Content: string(input)},
		},
		Temperature: b.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &BackendError{Backend: b.Name(), Message: "chat completion failed", Cause: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &BackendError{Backend: b.Name(), Message: "empty response"}
	}

	return b.parseResponse(resp.Choices[0].Message.Content)
}

func (b *openAIBackend) systemPrompt(src, tgt string) string {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "You are a professional translator. Translate every string of the JSON array from %s to %s.\n",
		languageName(src), languageName(tgt))
	prompt.WriteString("Translate each string independently and keep the order.\n")
	if b.marker != "" {
		fmt.Fprintf(&prompt, "Tokens made of %q followed by digits (for example %s0, %s1) are placeholders: copy them to the output unchanged and keep them where they belong in the sentence.\n",
			b.marker, b.marker, b.marker)
	}
	prompt.WriteString(`Return a JSON object with a single key "translations" holding an array of strings, one per input string.`)
	return prompt.String()
}

func (b *openAIBackend) parseResponse(content string) ([]string, error) {
	var result struct {
		Translations []string `json:"translations"`
	}
	if err := json.Unmarshal([]byte(content), &result); err == nil && result.Translations != nil {
		return result.Translations, nil
	}

	var list []string
	if err := json.Unmarshal([]byte(content), &list); err == nil {
		return list, nil
	}

	return nil, &BackendError{Backend: b.Name(), Message: "invalid response format"}
}

// languageName returns the English name of a language code, or the code
// itself when it is unknown.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
