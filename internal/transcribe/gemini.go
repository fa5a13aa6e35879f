package transcribe

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/mgpai22/jimaku/internal/audio"
	"github.com/mgpai22/jimaku/internal/subtitle"
)

// implements Transcriber interface using Google Gemini
type GeminiTranscriber struct {
	client  *genai.Client
	model   string
	options Options
}

// segment from Gemini's JSON response
type transcriptSegment struct {
	Start seconds `json:"start"`
	End   seconds `json:"end"`
	Text  string  `json:"text"`
}

// seconds accepts a JSON number or a clock string such as "01:02.5" or
// "00:01:02,500"; models do not always keep to numbers.
type seconds float64

func (s *seconds) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*s = seconds(n)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("timestamp must be a number or string: %s", data)
	}
	v, err := parseClock(str)
	if err != nil {
		return err
	}
	*s = seconds(v)
	return nil
}

// parseClock reads "SS", "MM:SS" or "HH:MM:SS" with an optional "." or ","
// fraction.
func parseClock(str string) (float64, error) {
	str = strings.TrimSpace(strings.ReplaceAll(str, ",", "."))
	parts := strings.Split(str, ":")
	if str == "" || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", str)
	}

	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", str)
		}
		total = total*60 + v
	}
	return total, nil
}

// segmentSchema constrains Gemini's reply to a segment array.
var segmentSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"start": {Type: genai.TypeNumber, Description: "segment start in seconds"},
			"end":   {Type: genai.TypeNumber, Description: "segment end in seconds"},
			"text":  {Type: genai.TypeString},
		},
		Required:         []string{"start", "end", "text"},
		PropertyOrdering: []string{"start", "end", "text"},
	},
}

var wrapperKeys = []string{"segments", "transcript", "data"}

var jsonBlockRegex = regexp.MustCompile("```(?:json)?\\s*")

func NewGeminiTranscriber(ctx context.Context, apiKey string, opts Options) (*GeminiTranscriber, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel(ProviderGemini)
	}

	return &GeminiTranscriber{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

// transcribes single audio file
func (t *GeminiTranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	if _, err := os.Stat(audioPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", audioPath)
	}

	uploadedFile, err := t.client.Files.UploadFromPath(ctx, audioPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio file: %w", err)
	}

	defer func() {
		_, _ = t.client.Files.Delete(context.WithoutCancel(ctx), uploadedFile.Name, nil)
	}()

	parts := []*genai.Part{
		genai.NewPartFromText(t.buildTranscriptionPrompt()),
		genai.NewPartFromURI(uploadedFile.URI, uploadedFile.MIMEType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   segmentSchema,
	}
	result, err := t.client.Models.GenerateContent(ctx, t.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini %s transcription failed: %w", t.model, err)
	}

	segments, err := parseTranscriptionResponse(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transcription: %w", err)
	}

	var duration float64
	if d, err := audio.GetDuration(ctx, audioPath); err == nil {
		duration = d.Seconds()
	} else if len(segments) > 0 {
		duration = segments[len(segments)-1].End
	}

	language := t.options.Language
	if language == LanguageAuto {
		language = ""
	}
	return &Result{
		Segments: segments,
		Text:     segmentsText(segments, language),
		Language: language,
		Duration: duration,
	}, nil
}

// creates the prompt for transcription
func (t *GeminiTranscriber) buildTranscriptionPrompt() string {
	var sb strings.Builder

	sb.WriteString("Generate a detailed transcript of this audio. ")
	sb.WriteString("For each sentence or phrase, provide the start timestamp, end timestamp, and the exact text spoken. ")
	sb.WriteString("Format your response as a JSON array with objects containing 'start', 'end', and 'text' fields, ")
	sb.WriteString("where 'start' and 'end' are timestamps in seconds (as numbers). ")

	switch t.options.Language {
	case "":
	case LanguageAuto:
		sb.WriteString("Transcribe in the language that is spoken. ")
	default:
		sb.WriteString(fmt.Sprintf("The audio is in %s. ", t.options.Language))
	}

	if t.options.TranscriptLanguage != "" && t.options.TranscriptLanguage != "native" {
		sb.WriteString(fmt.Sprintf("Output the transcript in %s. ", t.options.TranscriptLanguage))
	}

	if t.options.Prompt != "" {
		sb.WriteString(t.options.Prompt)
		sb.WriteString(" ")
	}

	sb.WriteString("Return ONLY the JSON array, no other text or markdown formatting.")

	return sb.String()
}

// parses Gemini's response into segments
func parseTranscriptionResponse(result *genai.GenerateContentResponse) ([]subtitle.Segment, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}

	responseText := sb.String()
	if responseText == "" {
		return nil, fmt.Errorf("no text in Gemini response")
	}

	transcriptSegments, err := extractTranscriptSegments(cleanJSONResponse(responseText))
	if err != nil {
		return nil, err
	}

	segments := make([]subtitle.Segment, 0, len(transcriptSegments))
	for _, ts := range transcriptSegments {
		text := strings.TrimSpace(ts.Text)
		if text == "" {
			continue
		}
		segments = append(segments, subtitle.Segment{
			Start: float64(ts.Start),
			End:   float64(ts.End),
			Text:  text,
		})
	}
	slices.SortStableFunc(segments, func(a, b subtitle.Segment) int {
		return cmp.Compare(a.Start, b.Start)
	})

	return segments, nil
}

// extractTranscriptSegments finds the first JSON value in s that holds a
// segment array, either bare or under a wrapper object.
func extractTranscriptSegments(s string) ([]transcriptSegment, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '[' && s[i] != '{' {
			continue
		}

		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&raw); err != nil {
			continue
		}
		if segments, ok := findSegments(raw); ok {
			return segments, nil
		}
	}

	return nil, fmt.Errorf("no transcript segments in response: %s", truncateString(s, 200))
}

func findSegments(raw json.RawMessage) ([]transcriptSegment, bool) {
	var segments []transcriptSegment
	if err := json.Unmarshal(raw, &segments); err == nil {
		return segments, validateSegments(segments)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}

	for _, key := range wrapperKeys {
		if v, ok := obj[key]; ok {
			if segments, ok := findSegments(v); ok {
				return segments, true
			}
		}
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		if !slices.Contains(wrapperKeys, key) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	for _, key := range keys {
		if segments, ok := findSegments(obj[key]); ok {
			return segments, true
		}
	}

	return nil, false
}

// reports whether at least one segment carries data
func validateSegments(segments []transcriptSegment) bool {
	for _, seg := range segments {
		if seg.Text != "" || seg.Start != 0 || seg.End != 0 {
			return true
		}
	}
	return false
}

// removes markdown formatting from the response
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = jsonBlockRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// truncates a string to maxLen bytes
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
