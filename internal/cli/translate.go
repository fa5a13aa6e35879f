package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/jimaku/internal/subtitle"
	"github.com/mgpai22/jimaku/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate [subtitle_file]",
	Short: "Translate SRT subtitles to another language using AI",
	Long: `Translate an existing SRT file to another language using an LLM.

Indices and timings are kept as they are; only the text changes. The
--overlay flag creates bilingual subtitles with the translated text
first, followed by the original text on the next line. The output
format follows the extension of --output (srt, vtt or ass).

Examples:
  jimaku translate episode01.srt --target-language english
  jimaku translate episode01.srt -t english --overlay
  jimaku translate episode01.srt -t korean --provider anthropic -o episode01.ko.vtt`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

var translationModels = map[translate.Provider][]string{
	translate.ProviderGemini: {
		"gemini-3-pro-preview",
		"gemini-3-flash-preview",
		"gemini-2.5-pro",
		"gemini-2.5-flash",
		"gemini-2.5-flash-lite",
	},
	translate.ProviderOpenAI: {
		"o1", "o3-mini", "o1-pro", "o3",
		"gpt-5", "gpt-5-nano", "gpt-5-mini", "gpt-5-pro",
		"gpt-5.1", "gpt-5.2", "gpt-5.2-pro",
	},
	translate.ProviderAnthropic: {
		"claude-haiku-4-5",
		"claude-sonnet-4-5",
		"claude-opus-4-1",
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().
		StringP("target-language", "t", "", "Target language for translation (required)")
	translateCmd.Flags().
		Bool("overlay", false, "Overlay translated text with original (bilingual subtitles)")
	translateCmd.Flags().
		StringP("api-key", "k", "", "API key (or set GEMINI_API_KEY/OPENAI_API_KEY/ANTHROPIC_API_KEY env var)")
	translateCmd.Flags().
		String("model", "", "Model to use for translation (provider-specific, uses sensible defaults)")
	translateCmd.Flags().
		Bool("model-override", false, "Allow any custom model, bypassing provider model validation")
	translateCmd.Flags().
		String("provider", "gemini", "Translation provider (gemini, openai, anthropic)")
	translateCmd.Flags().
		Int("concurrency", translate.DefaultConcurrency, "Number of parallel translation requests")
	translateCmd.Flags().
		Int("batch-size", translate.DefaultBatchSize, "Number of subtitle entries per API request")

	_ = translateCmd.MarkFlagRequired("target-language")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	subtitlePath := args[0]
	ctx := cmd.Context()

	targetLang, _ := cmd.Flags().GetString("target-language")
	overlay, _ := cmd.Flags().GetBool("overlay")
	apiKey, _ := cmd.Flags().GetString("api-key")
	model, _ := cmd.Flags().GetString("model")
	modelOverride, _ := cmd.Flags().GetBool("model-override")
	providerStr, _ := cmd.Flags().GetString("provider")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	outputPath, _ := cmd.Flags().GetString("output")
	inputLang, _ := cmd.Flags().GetString("language")

	if _, err := os.Stat(subtitlePath); os.IsNotExist(err) {
		return fmt.Errorf("subtitle file not found: %s", subtitlePath)
	}
	if ext := strings.ToLower(filepath.Ext(subtitlePath)); ext != ".srt" {
		return fmt.Errorf("unsupported subtitle format %q: only .srt input is supported", ext)
	}

	targetLang = strings.TrimSpace(targetLang)
	if targetLang == "" {
		return fmt.Errorf("target language is required")
	}
	if inputLang != "" && strings.EqualFold(strings.TrimSpace(inputLang), targetLang) {
		return fmt.Errorf(
			"input language %q and target language %q cannot be the same",
			inputLang,
			targetLang,
		)
	}

	provider := translate.Provider(strings.ToLower(strings.TrimSpace(providerStr)))
	if _, ok := translationModels[provider]; !ok {
		return fmt.Errorf("unsupported provider %q: use gemini, openai or anthropic", providerStr)
	}
	if model != "" && !modelOverride {
		if err := validateTranslationModel(provider, model); err != nil {
			return err
		}
	}
	if concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", batchSize)
	}

	apiKey, err := resolveAPIKey(string(provider), apiKey)
	if err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = translatedSubtitlePath(subtitlePath, targetLang, overlay)
	}
	format := subtitle.GetFormatFromExtension(outputPath)

	logger.Infow("Starting subtitle translation",
		"input", subtitlePath,
		"output", outputPath,
		"target_language", targetLang,
		"input_language", inputLang,
		"overlay", overlay,
		"provider", provider,
		"model", model,
	)

	entries, err := subtitle.ReadSRTFile(subtitlePath)
	if err != nil {
		return fmt.Errorf("failed to parse subtitle file: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("subtitle file contains no entries")
	}

	logger.Infow("Parsed subtitle file", "entries", len(entries))

	translator, err := translate.Factory(ctx, provider, apiKey, translate.Options{
		InputLanguage:  inputLang,
		TargetLanguage: targetLang,
		Model:          model,
		BatchSize:      batchSize,
		Concurrency:    concurrency,
	})
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}

	logger.Infow("Translating subtitles",
		"items", len(entries),
		"batch_size", batchSize,
		"concurrency", concurrency,
	)

	translated, err := translate.TranslateEntries(ctx, translator, entries)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	if overlay {
		translated = overlayEntries(translated, entries)
	}

	if err := subtitle.WriteFile(outputPath, format, translated); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Subtitles translated successfully: %s\n", absOutput)
	fmt.Printf("  Entries: %d\n", len(translated))
	fmt.Printf("  Target language: %s\n", targetLang)
	if overlay {
		fmt.Printf("  Mode: bilingual overlay\n")
	}

	return nil
}

func validateTranslationModel(provider translate.Provider, model string) error {
	models := translationModels[provider]
	if slices.Contains(models, model) {
		return nil
	}
	return fmt.Errorf(
		"unsupported %s model %q: valid models are %s (use --model-override to bypass)",
		provider,
		model,
		strings.Join(models, ", "),
	)
}

// translatedSubtitlePath derives name.<lang>.srt, or name.<lang>.overlay.srt
// for bilingual output.
func translatedSubtitlePath(subtitlePath, targetLang string, overlay bool) string {
	ext := filepath.Ext(subtitlePath)
	base := strings.TrimSuffix(subtitlePath, ext)
	if overlay {
		return fmt.Sprintf("%s.%s.overlay%s", base, targetLang, ext)
	}
	return fmt.Sprintf("%s.%s%s", base, targetLang, ext)
}

// translated + newline + original
func overlayEntries(translated, original []subtitle.Entry) []subtitle.Entry {
	out := make([]subtitle.Entry, len(translated))
	for i, e := range translated {
		e.Text = e.Text + "\n" + original[i].Text
		out[i] = e
	}
	return out
}
