package translate

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mgpai22/jimaku/internal/subtitle"
)

// echoModel answers a prompt with the upper-cased input items.
func echoModel(t *testing.T) completeFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		start := strings.Index(prompt, "Input JSON:\n")
		end := strings.LastIndex(prompt, "\n\nOutput")
		if start < 0 || end < 0 {
			t.Errorf("prompt missing input section:\n%s", prompt)
			return "", errors.New("bad prompt")
		}

		var items []TranslationItem
		if err := json.Unmarshal([]byte(prompt[start+len("Input JSON:\n"):end]), &items); err != nil {
			return "", err
		}
		for i := range items {
			items[i].Text = strings.ToUpper(items[i].Text)
		}
		out, _ := json.Marshal(items)
		return "```json\n" + string(out) + "\n```", nil
	}
}

func makeItems(n int) []TranslationItem {
	items := make([]TranslationItem, n)
	for i := range items {
		items[i] = TranslationItem{Index: i, Text: "line"}
	}
	return items
}

func TestTranslateBatchesSplitsAndSorts(t *testing.T) {
	var requests atomic.Int32
	model := echoModel(t)
	complete := func(ctx context.Context, prompt string) (string, error) {
		requests.Add(1)
		return model(ctx, prompt)
	}

	items := makeItems(23)
	results, err := translateBatches(context.Background(), items, Options{BatchSize: 10, Concurrency: 2}, complete)
	if err != nil {
		t.Fatalf("translateBatches error: %v", err)
	}

	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, r := range results {
		if r.Index != i || r.Text != "LINE" {
			t.Errorf("result %d = %+v", i, r)
		}
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestTranslateBatchesLimitsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	model := echoModel(t)
	complete := func(ctx context.Context, prompt string) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		return model(ctx, prompt)
	}

	_, err := translateBatches(context.Background(), makeItems(40), Options{BatchSize: 5, Concurrency: 2}, complete)
	if err != nil {
		t.Fatalf("translateBatches error: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", peak.Load())
	}
}

func TestTranslateBatchesFailsOnError(t *testing.T) {
	boom := errors.New("rate limited")
	complete := func(ctx context.Context, prompt string) (string, error) {
		return "", boom
	}

	_, err := translateBatches(context.Background(), makeItems(3), Options{}, complete)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestTranslateBatchesFailsOnCountMismatch(t *testing.T) {
	complete := func(ctx context.Context, prompt string) (string, error) {
		return `[{"index": 0, "text": "only one"}]`, nil
	}

	if _, err := translateBatches(context.Background(), makeItems(2), Options{}, complete); err == nil {
		t.Error("expected error when the model drops items")
	}
}

func TestTranslateBatchesEmpty(t *testing.T) {
	results, err := translateBatches(context.Background(), nil, Options{}, nil)
	if err != nil || len(results) != 0 {
		t.Errorf("got %v, %v; want empty result", results, err)
	}
}

type fakeTranslator struct {
	results []TranslationResult
}

func (f *fakeTranslator) Translate(ctx context.Context, items []TranslationItem) ([]TranslationResult, error) {
	return f.results, nil
}

func TestTranslateEntriesKeepsTimings(t *testing.T) {
	entries := []subtitle.Entry{
		{Index: 1, Start: "00:00:00,000", End: "00:00:01,000", Text: "こんにちは"},
		{Index: 2, Start: "00:00:01,000", End: "00:00:02,500", Text: "さようなら"},
	}
	fake := &fakeTranslator{results: []TranslationResult{
		{Index: 1, Text: "Goodbye"},
		{Index: 0, Text: "Hello"},
	}}

	got, err := TranslateEntries(context.Background(), fake, entries)
	if err != nil {
		t.Fatalf("TranslateEntries error: %v", err)
	}
	if got[0].Text != "Hello" || got[1].Text != "Goodbye" {
		t.Errorf("texts = %q, %q", got[0].Text, got[1].Text)
	}
	if got[1].Index != 2 || got[1].Start != "00:00:01,000" || got[1].End != "00:00:02,500" {
		t.Errorf("timing changed: %+v", got[1])
	}
	if entries[0].Text != "こんにちは" {
		t.Error("input entries were modified")
	}
}

func TestTranslateEntriesRejectsBadResults(t *testing.T) {
	entries := []subtitle.Entry{{Index: 1, Text: "a"}, {Index: 2, Text: "b"}}

	tests := []struct {
		name    string
		results []TranslationResult
	}{
		{"missing", []TranslationResult{{Index: 0, Text: "A"}}},
		{"out of range", []TranslationResult{{Index: 0, Text: "A"}, {Index: 5, Text: "B"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TranslateEntries(context.Background(), &fakeTranslator{results: tt.results}, entries)
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFactoryProviders(t *testing.T) {
	tests := []struct {
		provider  Provider
		wantModel string
		check     func(Translator) (string, bool)
	}{
		{ProviderGemini, defaultGeminiModel, func(tr Translator) (string, bool) {
			g, ok := tr.(*GeminiTranslator)
			if !ok {
				return "", false
			}
			return g.model, g.config.ResponseMIMEType == "application/json"
		}},
		{ProviderOpenAI, defaultOpenAIModel, func(tr Translator) (string, bool) {
			o, ok := tr.(*OpenAITranslator)
			if !ok {
				return "", false
			}
			return o.model, true
		}},
		{ProviderAnthropic, "claude-haiku-4-5", func(tr Translator) (string, bool) {
			a, ok := tr.(*AnthropicTranslator)
			if !ok {
				return "", false
			}
			return string(a.model), true
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			translator, err := Factory(context.Background(), tt.provider, "fake-key", Options{TargetLanguage: "English"})
			if err != nil {
				t.Fatalf("Factory(%s) returned error: %v", tt.provider, err)
			}
			model, ok := tt.check(translator)
			if !ok {
				t.Fatalf("unexpected translator %T", translator)
			}
			if model != tt.wantModel {
				t.Errorf("default model = %q, want %q", model, tt.wantModel)
			}

			if _, err := Factory(context.Background(), tt.provider, "", Options{TargetLanguage: "English"}); err == nil {
				t.Error("expected error without an API key")
			}
		})
	}
}

func TestMaxOutputTokens(t *testing.T) {
	tests := []struct {
		batchSize int
		want      int64
	}{
		{0, DefaultBatchSize * tokensPerItem},
		{10, 4096},
		{100, 100 * tokensPerItem},
	}

	for _, tt := range tests {
		if got := maxOutputTokens(Options{BatchSize: tt.batchSize}); got != tt.want {
			t.Errorf("maxOutputTokens(batch %d) = %d, want %d", tt.batchSize, got, tt.want)
		}
	}
}

func TestFactoryRequiresTargetLanguage(t *testing.T) {
	ctx := context.Background()
	opts := Options{} // no TargetLanguage
	_, err := Factory(ctx, ProviderGemini, "fake-key", opts)
	if err == nil {
		t.Error("expected error for missing target language")
	}
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	ctx := context.Background()
	opts := Options{TargetLanguage: "French"}
	_, err := Factory(ctx, Provider("unknown"), "fake-key", opts)
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

// Integration test: only runs if OPENAI_API_KEY is set
func TestOpenAITranslatorIntegration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set; skipping integration test")
	}

	ctx := context.Background()
	opts := Options{TargetLanguage: "English", InputLanguage: "Japanese"}
	translator, err := NewOpenAITranslator(ctx, apiKey, opts)
	if err != nil {
		t.Fatalf("NewOpenAITranslator error: %v", err)
	}

	items := []TranslationItem{
		{Index: 0, Text: "こんにちは"},
		{Index: 1, Text: "さようなら"},
	}

	results, err := translator.Translate(ctx, items)
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Text == "" {
			t.Errorf("result index %d has empty text", r.Index)
		}
	}
}
