package translate

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-5-mini"

// OpenAITranslator translates subtitle batches with Chat Completions.
type OpenAITranslator struct {
	client  openai.Client
	model   string
	options Options
}

func NewOpenAITranslator(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*OpenAITranslator, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	model := opts.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAITranslator{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		options: opts,
	}, nil
}

func (t *OpenAITranslator) Translate(
	ctx context.Context,
	items []TranslationItem,
) ([]TranslationResult, error) {
	return translateBatches(ctx, items, t.options, t.complete)
}

func (t *OpenAITranslator) complete(ctx context.Context, prompt string) (string, error) {
	completion, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: t.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(maxOutputTokens(t.options)),
	})
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", t.model, err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}

	choice := completion.Choices[0]
	if choice.FinishReason == "length" {
		return "", fmt.Errorf("openai %s: reply truncated at %d tokens", t.model, maxOutputTokens(t.options))
	}
	return choice.Message.Content, nil
}
