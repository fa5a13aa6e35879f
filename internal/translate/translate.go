package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mgpai22/jimaku/internal/subtitle"
)

const (
	DefaultBatchSize   = 50
	DefaultConcurrency = 3
)

// systemPrompt frames every provider request.
const systemPrompt = "You are a professional subtitle translator. " +
	"You receive numbered subtitle lines as JSON and reply with a JSON array of the same length. " +
	"Translations must read naturally when shown on screen for a few seconds."

// tokens reserved per subtitle line when sizing a reply
const tokensPerItem = 96

// maxOutputTokens sizes the reply budget for a batch.
func maxOutputTokens(opts Options) int64 {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return max(int64(batchSize*tokensPerItem), 4096)
}

// single text item to translate
type TranslationItem struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// translated text item
type TranslationResult struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// interface for text translation
type Translator interface {
	Translate(
		ctx context.Context,
		items []TranslationItem,
	) ([]TranslationResult, error)
}

// translation service provider
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

type Options struct {
	InputLanguage  string
	TargetLanguage string
	Model          string
	Prompt         string
	BatchSize      int // items per API request (default 50)
	Concurrency    int // batches in flight (default 3)
}

// creates Translator based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Translator, error) {
	if opts.TargetLanguage == "" {
		return nil, fmt.Errorf("target language is required")
	}

	switch provider {
	case ProviderGemini:
		return NewGeminiTranslator(ctx, apiKey, opts)
	case ProviderOpenAI:
		return NewOpenAITranslator(ctx, apiKey, opts)
	case ProviderAnthropic:
		return NewAnthropicTranslator(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", provider)
	}
}

// completeFunc sends one prompt to a model and returns its raw text reply.
type completeFunc func(ctx context.Context, prompt string) (string, error)

// translateBatches splits items into batches of opts.BatchSize, sends up to
// opts.Concurrency of them at once and returns the results sorted by index.
func translateBatches(
	ctx context.Context,
	items []TranslationItem,
	opts Options,
	complete completeFunc,
) ([]TranslationResult, error) {
	if len(items) == 0 {
		return []TranslationResult{}, nil
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var batches [][]TranslationItem
	for i := 0; i < len(items); i += batchSize {
		batches = append(batches, items[i:min(i+batchSize, len(items))])
	}

	results := make([][]TranslationResult, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			res, err := translateBatch(gctx, batch, opts, complete)
			if err != nil {
				return fmt.Errorf("batch %d failed: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	allResults := make([]TranslationResult, 0, len(items))
	for _, res := range results {
		allResults = append(allResults, res...)
	}

	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].Index < allResults[j].Index
	})

	return allResults, nil
}

func translateBatch(
	ctx context.Context,
	items []TranslationItem,
	opts Options,
	complete completeFunc,
) ([]TranslationResult, error) {
	responseText, err := complete(ctx, BuildPrompt(opts, items))
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	return parseResponse(responseText, len(items))
}

// TranslateEntries translates subtitle text in place of the originals,
// keeping every index and timing.
func TranslateEntries(
	ctx context.Context,
	t Translator,
	entries []subtitle.Entry,
) ([]subtitle.Entry, error) {
	items := make([]TranslationItem, len(entries))
	for i, e := range entries {
		items[i] = TranslationItem{Index: i, Text: e.Text}
	}

	results, err := t.Translate(ctx, items)
	if err != nil {
		return nil, err
	}

	translated := make([]subtitle.Entry, len(entries))
	copy(translated, entries)

	seen := make([]bool, len(entries))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(entries) {
			return nil, fmt.Errorf("translation returned unknown index %d", r.Index)
		}
		translated[r.Index].Text = r.Text
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("translation missing entry %d", entries[i].Index)
		}
	}

	return translated, nil
}

// BuildPrompt creates the translation prompt for LLM providers
func BuildPrompt(opts Options, items []TranslationItem) string {
	var sb strings.Builder

	if opts.InputLanguage != "" {
		sb.WriteString(fmt.Sprintf(
			"Translate the following %s subtitle texts to %s.\n\n",
			opts.InputLanguage,
			opts.TargetLanguage,
		))
	} else {
		sb.WriteString(fmt.Sprintf(
			"Translate the following subtitle texts to %s.\n\n",
			opts.TargetLanguage,
		))
	}

	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. Translate ONLY the text content, preserving the meaning.\n")
	sb.WriteString("2. Keep subtitles short; each line is shown for only a moment.\n")
	sb.WriteString("3. Preserve line breaks in the same positions.\n")
	sb.WriteString("4. Return ONLY a JSON array with the same structure.\n")
	sb.WriteString("5. Each object must have 'index' and 'text' fields.\n")
	sb.WriteString("6. The 'index' values must match the input indices exactly.\n")
	sb.WriteString("7. Do not add any explanation or markdown formatting.\n\n")

	if opts.Prompt != "" {
		sb.WriteString(fmt.Sprintf("Additional instructions: %s\n\n", opts.Prompt))
	}

	sb.WriteString("Input JSON:\n")

	inputJSON, _ := json.MarshalIndent(items, "", "  ")
	sb.Write(inputJSON)

	sb.WriteString("\n\nOutput the translated JSON array only:")

	return sb.String()
}
