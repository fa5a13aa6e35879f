package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgpai22/jimaku/internal/audio"
	"github.com/mgpai22/jimaku/internal/config"
	"github.com/mgpai22/jimaku/internal/subtitle"
	"github.com/mgpai22/jimaku/internal/transcribe"
)

var generateCmd = &cobra.Command{
	Use:   "generate [media_file]",
	Short: "Generate subtitles for an audio or video file",
	Long: `Generate subtitles for the specified audio or video file.

The input is converted to 16 kHz mono WAV, transcribed by the selected
provider and split into subtitle lines of at most --max-chars characters.
Long recordings are cut into chunks and transcribed in parallel.

Examples:
  jimaku generate episode01.mp4
  jimaku generate drama.mkv --max-chars 16 --format vtt
  jimaku generate podcast.mp3 --provider gemini --chunk-duration 5
  jimaku generate talk.wav --model gpt-4o-transcribe -o talk.ja.srt`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().
		StringP("provider", "p", "openai", "Transcription provider (openai, gemini)")
	generateCmd.Flags().
		StringP("api-key", "k", "", "Provider API key (or set OPENAI_API_KEY/GEMINI_API_KEY env var)")
	generateCmd.Flags().
		String("model", "", "Transcription model (provider default when empty)")
	generateCmd.Flags().
		IntP("max-chars", "m", config.DefaultMaxChars, "Maximum characters per subtitle line")
	generateCmd.Flags().
		StringP("format", "f", "srt", "Output subtitle format (srt, vtt, ass)")
	generateCmd.Flags().
		IntP("chunk-duration", "d", 10, "Chunk duration in minutes for long audio, 0 disables chunking")
	generateCmd.Flags().
		Int("concurrency", 3, "Number of parallel transcription workers")
	generateCmd.Flags().
		String("transcript-language", "native", "Output language for transcript (e.g., 'english', or 'native' for original language)")
	generateCmd.Flags().
		String("prompt", "", "Extra context passed to the transcription model")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]
	ctx := cmd.Context()

	if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", mediaPath)
	}
	if !audio.IsMediaFile(mediaPath) {
		return fmt.Errorf("unsupported file type: %s (expected audio or video file)", filepath.Ext(mediaPath))
	}

	providerStr, _ := cmd.Flags().GetString("provider")
	apiKey, _ := cmd.Flags().GetString("api-key")
	model, _ := cmd.Flags().GetString("model")
	maxChars, _ := cmd.Flags().GetInt("max-chars")
	formatStr, _ := cmd.Flags().GetString("format")
	chunkMinutes, _ := cmd.Flags().GetInt("chunk-duration")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	transcriptLang, _ := cmd.Flags().GetString("transcript-language")
	prompt, _ := cmd.Flags().GetString("prompt")
	outputPath, _ := cmd.Flags().GetString("output")
	language, _ := cmd.Flags().GetString("language")

	provider := transcribe.Provider(strings.ToLower(strings.TrimSpace(providerStr)))
	if provider != transcribe.ProviderOpenAI && provider != transcribe.ProviderGemini {
		return fmt.Errorf("unsupported provider %q: use openai or gemini", providerStr)
	}
	if provider == transcribe.ProviderOpenAI && !isValidOpenAITranscriptLanguage(transcriptLang) {
		return fmt.Errorf(
			"OpenAI can only transcribe natively or translate to english, got --transcript-language %q",
			transcriptLang,
		)
	}
	if model == "" {
		model = transcribe.DefaultModel(provider)
	}
	if err := validateOpenAITranslation(provider, model, transcriptLang); err != nil {
		return err
	}
	if maxChars < 1 {
		return fmt.Errorf("max-chars must be positive, got %d", maxChars)
	}
	if chunkMinutes < 0 {
		return fmt.Errorf("chunk-duration must not be negative, got %d", chunkMinutes)
	}
	if concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}

	apiKey, err := resolveAPIKey(string(provider), apiKey)
	if err != nil {
		return err
	}

	format, err := subtitle.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	if outputPath == "" {
		outputPath = defaultSubtitlePath(mediaPath, format)
	}

	logger.Infow("Starting subtitle generation",
		"input", mediaPath,
		"output", outputPath,
		"provider", provider,
		"model", model,
		"max_chars", maxChars,
		"format", format,
	)

	tempDir, err := os.MkdirTemp("", "jimaku-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	wavPath := filepath.Join(tempDir, "audio.wav")
	logger.Infow("Converting audio", "kind", mediaKind(mediaPath))
	if err := audio.ConvertToWAV(ctx, mediaPath, wavPath); err != nil {
		return fmt.Errorf("failed to convert audio: %w", err)
	}

	duration, err := audio.WAVDuration(wavPath)
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}
	logger.Infow("Audio prepared", "duration", duration.String())

	transcriber, err := transcribe.Factory(ctx, provider, apiKey, transcribe.Options{
		Language:           language,
		TranscriptLanguage: transcriptLang,
		Model:              model,
		Prompt:             prompt,
	})
	if err != nil {
		return fmt.Errorf("failed to create transcriber: %w", err)
	}

	logger.Infow("Transcribing audio",
		"chunk_duration", (time.Duration(chunkMinutes) * time.Minute).String(),
		"concurrency", concurrency,
	)

	result, err := transcribe.TranscribeFile(ctx, transcriber, wavPath, transcribe.ChunkOptions{
		ChunkDuration: time.Duration(chunkMinutes) * time.Minute,
		Total:         duration,
		Concurrency:   concurrency,
		TempDir:       tempDir,
	})
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}

	logger.Infow("Transcription complete",
		"segments", len(result.Segments),
	)
	warnInvertedSegments(result.Segments)

	built, err := subtitle.Build(result.Segments, maxChars)
	if err != nil {
		return fmt.Errorf("failed to build subtitles: %w", err)
	}

	if err := subtitle.WriteFile(outputPath, format, built.Entries); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Subtitles generated successfully: %s\n", absOutput)
	fmt.Printf("  Entries: %d\n", built.Count())
	fmt.Printf("  Duration: %.2fs\n", built.Duration)

	return nil
}

// defaultSubtitlePath places the subtitle next to the media file.
func defaultSubtitlePath(mediaPath string, format subtitle.Format) string {
	base := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath))
	return base + subtitle.GetExtensionForFormat(format)
}

func mediaKind(path string) string {
	if audio.IsVideoFile(path) {
		return "video"
	}
	return "audio"
}

func warnInvertedSegments(segments []subtitle.Segment) {
	for i, seg := range segments {
		if seg.End < seg.Start {
			logger.Warnw("Segment ends before it starts",
				"segment", i,
				"start", seg.Start,
				"end", seg.End,
			)
		}
	}
}

// translating to english goes through the translations endpoint, which only
// serves whisper models
func validateOpenAITranslation(provider transcribe.Provider, model, transcriptLang string) error {
	if provider != transcribe.ProviderOpenAI || !isEnglish(transcriptLang) {
		return nil
	}
	if transcribe.SupportsTranslation(model) {
		return nil
	}
	return fmt.Errorf(
		"--transcript-language english needs a whisper model, got --model %q",
		model,
	)
}

func isEnglish(lang string) bool {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "english", "en":
		return true
	default:
		return false
	}
}

// OpenAI can only transcribe in the spoken language or translate to English.
func isValidOpenAITranscriptLanguage(lang string) bool {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "native", "english", "en":
		return true
	default:
		return false
	}
}
