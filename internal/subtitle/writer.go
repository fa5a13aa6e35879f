package subtitle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SubRip format
type SRTWriter struct{}

// WebVTT format
type VTTWriter struct{}

// Advanced SubStation Alpha format
type ASSWriter struct {
	Title    string
	FontName string
	FontSize int
}

func NewWriter(format Format) (Writer, error) {
	switch format {
	case FormatSRT:
		return &SRTWriter{}, nil
	case FormatVTT:
		return &VTTWriter{}, nil
	case FormatASS:
		return &ASSWriter{
			Title:    "Jimaku Generated Subtitles",
			FontName: "Noto Sans CJK JP",
			FontSize: 20,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Serialize renders entries as SRT blocks: index, timing line, text and a
// blank separator line between consecutive entries.
func Serialize(entries []Entry) string {
	var sb strings.Builder
	for i, entry := range entries {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n",
			entry.Index, entry.Start, entry.End, entry.Text)
		if i < len(entries)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (w *SRTWriter) Write(out io.Writer, entries []Entry) error {
	_, err := io.WriteString(out, Serialize(entries))
	return err
}

func (w *VTTWriter) Write(out io.Writer, entries []Entry) error {
	var sb strings.Builder

	sb.WriteString("WEBVTT\n\n")
	for _, entry := range entries {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			entry.Index,
			formatVTTTime(entry.StartSeconds),
			formatVTTTime(entry.EndSeconds),
			entry.Text)
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

func (w *ASSWriter) Write(out io.Writer, entries []Entry) error {
	var sb strings.Builder

	// script info section
	sb.WriteString("[Script Info]\n")
	fmt.Fprintf(&sb, "Title: %s\n", w.Title)
	sb.WriteString("ScriptType: v4.00+\n")
	sb.WriteString("Collisions: Normal\n")
	sb.WriteString("PlayDepth: 0\n\n")

	// v4+ styles section
	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb, "Style: Default,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1\n\n",
		w.FontName, w.FontSize)

	// events section
	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, entry := range entries {
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTime(entry.StartSeconds),
			formatASSTime(entry.EndSeconds),
			strings.ReplaceAll(entry.Text, "\n", "\\N"))
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

// WriteFile writes entries to path in the given format, creating parent
// directories as needed.
func WriteFile(path string, format Format, entries []Entry) error {
	w, err := NewWriter(format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := w.Write(f, entries); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// subtitle format based on file extension
func GetFormatFromExtension(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtt":
		return FormatVTT
	case ".ass", ".ssa":
		return FormatASS
	default:
		return FormatSRT
	}
}

// file extension for a format
func GetExtensionForFormat(format Format) string {
	switch format {
	case FormatVTT:
		return ".vtt"
	case FormatASS:
		return ".ass"
	default:
		return ".srt"
	}
}

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "srt":
		return FormatSRT, nil
	case "vtt":
		return FormatVTT, nil
	case "ass":
		return FormatASS, nil
	default:
		return "", fmt.Errorf("unsupported format %q: use srt, vtt, or ass", name)
	}
}
