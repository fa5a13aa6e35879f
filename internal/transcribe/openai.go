package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mgpai22/jimaku/internal/audio"
	"github.com/mgpai22/jimaku/internal/subtitle"
)

// Whisper's own thresholds for dropping silence hallucinations: a segment is
// discarded when it is probably silent and the decoder was unsure.
const (
	noSpeechThreshold = 0.6
	logProbThreshold  = -1.0
)

// OpenAITranscriber uses the OpenAI audio API. Whisper models return
// timestamped segments; the gpt-4o transcribe models only return text, which
// becomes one segment spanning the file.
type OpenAITranscriber struct {
	client  openai.Client
	model   string
	options Options
}

// segment from a verbose_json response
type whisperSegment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogprob   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

type whisperVerboseResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

// verbose_json reports languages by name
var whisperLanguageCodes = map[string]string{
	"japanese":   "ja",
	"english":    "en",
	"chinese":    "zh",
	"korean":     "ko",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"portuguese": "pt",
	"russian":    "ru",
	"italian":    "it",
}

func NewOpenAITranscriber(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel(ProviderOpenAI)
	}

	t := &OpenAITranscriber{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		options: opts,
	}
	if t.shouldUseTranslation() && !SupportsTranslation(model) {
		return nil, fmt.Errorf(
			"openai model %q cannot translate to english, use whisper-1",
			model,
		)
	}
	return t, nil
}

// SupportsTranslation reports whether an OpenAI model is served by the
// translations endpoint. Only whisper models are.
func SupportsTranslation(model string) bool {
	return strings.HasPrefix(model, "whisper")
}

func (t *OpenAITranscriber) Transcribe(
	ctx context.Context,
	audioPath string,
) (*Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	var duration float64
	if d, err := audio.GetDuration(ctx, audioPath); err == nil {
		duration = d.Seconds()
	}

	if t.shouldUseTranslation() {
		return t.translateToEnglish(ctx, file, duration)
	}
	return t.transcribe(ctx, file, duration)
}

func (t *OpenAITranscriber) shouldUseTranslation() bool {
	lang := strings.ToLower(strings.TrimSpace(t.options.TranscriptLanguage))
	return lang == "english" || lang == "en"
}

func (t *OpenAITranscriber) verboseJSON() bool {
	return SupportsTranslation(t.model)
}

func (t *OpenAITranscriber) translateToEnglish(
	ctx context.Context,
	file *os.File,
	duration float64,
) (*Result, error) {
	params := openai.AudioTranslationNewParams{
		File:           file,
		Model:          openai.AudioModel(t.model),
		ResponseFormat: openai.AudioTranslationNewParamsResponseFormatVerboseJSON,
	}
	if t.options.Prompt != "" {
		params.Prompt = openai.String(t.options.Prompt)
	}

	resp, err := t.client.Audio.Translations.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai %s translation failed: %w", t.model, err)
	}

	return t.buildResult(resp.RawJSON(), resp.Text, "en", duration), nil
}

func (t *OpenAITranscriber) transcribe(
	ctx context.Context,
	file *os.File,
	duration float64,
) (*Result, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  file,
		Model: openai.AudioModel(t.model),
	}
	if t.verboseJSON() {
		params.ResponseFormat = openai.AudioResponseFormatVerboseJSON
		params.TimestampGranularities = []string{"segment"}
	} else {
		params.ResponseFormat = openai.AudioResponseFormatJSON
	}
	language := t.options.Language
	if language == LanguageAuto {
		language = ""
	}
	if language != "" {
		params.Language = openai.String(language)
	}
	if t.options.Prompt != "" {
		params.Prompt = openai.String(t.options.Prompt)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai %s transcription failed: %w", t.model, err)
	}

	return t.buildResult(resp.RawJSON(), resp.Text, language, duration), nil
}

// buildResult falls back to one segment spanning the whole file when the
// response carries no usable segments. language wins over the detected one.
func (t *OpenAITranscriber) buildResult(
	rawJSON, text, language string,
	duration float64,
) *Result {
	text = strings.TrimSpace(text)

	segments, err := t.parseVerboseJSONResponse(rawJSON, duration)
	if err != nil {
		segments = []subtitle.Segment{{
			Start: 0,
			End:   duration,
			Text:  text,
		}}
	}

	if language == "" {
		language = detectedLanguage(rawJSON)
	}
	if text == "" {
		text = segmentsText(segments, language)
	}
	if duration == 0 && len(segments) > 0 {
		duration = segments[len(segments)-1].End
	}

	return &Result{
		Segments: segments,
		Text:     text,
		Language: language,
		Duration: duration,
	}
}

func (t *OpenAITranscriber) parseVerboseJSONResponse(
	rawJSON string,
	fallbackDuration float64,
) ([]subtitle.Segment, error) {
	if rawJSON == "" {
		return nil, fmt.Errorf("empty response")
	}

	var verboseResp whisperVerboseResponse
	if err := json.Unmarshal([]byte(rawJSON), &verboseResp); err != nil {
		return nil, fmt.Errorf("failed to parse verbose_json response: %w", err)
	}

	if len(verboseResp.Segments) == 0 {
		if verboseResp.Text == "" {
			return nil, fmt.Errorf("no segments or text in response")
		}
		dur := fallbackDuration
		if verboseResp.Duration > 0 {
			dur = verboseResp.Duration
		}
		return []subtitle.Segment{{
			Start: 0,
			End:   dur,
			Text:  strings.TrimSpace(verboseResp.Text),
		}}, nil
	}

	segments := make([]subtitle.Segment, 0, len(verboseResp.Segments))
	for _, seg := range verboseResp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || seg.silent() {
			continue
		}
		segments = append(segments, subtitle.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
	}

	return segments, nil
}

func (s whisperSegment) silent() bool {
	return s.NoSpeechProb > noSpeechThreshold && s.AvgLogprob < logProbThreshold
}

// detectedLanguage maps the language named in a verbose_json response to its
// code, or returns "" when there is none.
func detectedLanguage(rawJSON string) string {
	var resp struct {
		Language string `json:"language"`
	}
	if rawJSON == "" || json.Unmarshal([]byte(rawJSON), &resp) != nil {
		return ""
	}
	lang := strings.ToLower(strings.TrimSpace(resp.Language))
	if code, ok := whisperLanguageCodes[lang]; ok {
		return code
	}
	return lang
}
