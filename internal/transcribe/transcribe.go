package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mgpai22/jimaku/internal/audio"
	"github.com/mgpai22/jimaku/internal/subtitle"
)

// transcription result; times are in seconds
type Result struct {
	Segments []subtitle.Segment
	Text     string
	Language string
	Duration float64
}

// interface for audio transcription
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}

// transcription service provider
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// DefaultLanguage is the spoken language assumed when none is given.
const DefaultLanguage = "ja"

// LanguageAuto leaves language detection to the provider.
const LanguageAuto = "auto"

// transcription options
type Options struct {
	Language           string // Source language of audio
	TranscriptLanguage string // Output language for transcript (default: "native")
	Model              string
	Prompt             string
}

// creates transcriber based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Transcriber, error) {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	switch provider {
	case ProviderGemini:
		return NewGeminiTranscriber(ctx, apiKey, opts)
	case ProviderOpenAI:
		return NewOpenAITranscriber(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// DefaultModel returns the model used when a request names none.
func DefaultModel(provider Provider) string {
	switch provider {
	case ProviderGemini:
		return "gemini-2.5-flash"
	default:
		return "whisper-1"
	}
}

// DefaultModels is the allowlist used when the configuration has none.
func DefaultModels(provider Provider) []string {
	switch provider {
	case ProviderGemini:
		return []string{"gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.0-flash"}
	default:
		return []string{"whisper-1", "gpt-4o-transcribe", "gpt-4o-mini-transcribe"}
	}
}

// settings for long-file transcription
type ChunkOptions struct {
	// Chunking is skipped when ChunkDuration is zero or Total fits in one chunk.
	ChunkDuration time.Duration
	// Total length of the audio; probed when zero.
	Total       time.Duration
	Concurrency int
	TempDir     string
}

// TranscribeFile transcribes audioPath, splitting it into chunks first when
// it is longer than opts.ChunkDuration.
func TranscribeFile(
	ctx context.Context,
	t Transcriber,
	audioPath string,
	opts ChunkOptions,
) (*Result, error) {
	if opts.ChunkDuration <= 0 ||
		(opts.Total > 0 && opts.Total <= opts.ChunkDuration) {
		return t.Transcribe(ctx, audioPath)
	}

	dir, err := os.MkdirTemp(opts.TempDir, "jimaku-chunks-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk directory: %w", err)
	}
	defer os.RemoveAll(dir)

	chunks, err := audio.ChunkAudio(
		ctx,
		audioPath,
		opts.Total,
		opts.ChunkDuration,
		dir,
		opts.Concurrency,
	)
	if err != nil {
		return nil, err
	}
	if len(chunks) <= 1 {
		return t.Transcribe(ctx, audioPath)
	}

	return TranscribeChunks(ctx, t, chunks, opts.Concurrency)
}

// TranscribeChunks transcribes chunks in parallel and merges the results in
// chunk order, shifting each chunk's segments by its start offset.
func TranscribeChunks(
	ctx context.Context,
	t Transcriber,
	chunks []audio.ChunkInfo,
	concurrency int,
) (*Result, error) {
	if len(chunks) == 0 {
		return &Result{}, nil
	}

	if concurrency <= 0 {
		concurrency = 3
	}

	results := make([]*Result, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			result, err := t.Transcribe(gctx, chunk.Path)
			if err != nil {
				return fmt.Errorf("chunk %d failed: %w", chunk.Index, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &Result{
		Duration: chunks[len(chunks)-1].EndTime.Seconds(),
	}
	texts := make([]string, 0, len(results))
	for i, r := range results {
		offset := chunks[i].StartTime.Seconds()
		for _, seg := range r.Segments {
			merged.Segments = append(merged.Segments, subtitle.Segment{
				Start: seg.Start + offset,
				End:   seg.End + offset,
				Text:  seg.Text,
			})
		}
		if text := strings.TrimSpace(r.Text); text != "" {
			texts = append(texts, text)
		}
		if merged.Language == "" {
			merged.Language = r.Language
		}
	}
	merged.Text = joinText(texts, merged.Language)

	return merged, nil
}

// joinText joins transcript pieces, without separators for scripts that
// do not use spaces between words.
func joinText(parts []string, language string) string {
	switch strings.ToLower(language) {
	case "ja", "japanese", "zh", "chinese":
		return strings.Join(parts, "")
	default:
		return strings.Join(parts, " ")
	}
}

func segmentsText(segments []subtitle.Segment, language string) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return joinText(parts, language)
}
