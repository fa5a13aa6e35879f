package subtitle

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sampleEntries(t *testing.T) []Entry {
	t.Helper()
	result, err := Build([]Segment{
		{Start: 0, End: 2, Text: "AAAAA、BBB"},
		{Start: 2.5, End: 4, Text: "こんにちは"},
	}, 5)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	return result.Entries
}

func TestSerializeEmpty(t *testing.T) {
	if got := Serialize(nil); got != "" {
		t.Errorf("Serialize(nil) = %q, want empty", got)
	}
}

func TestSRTWriterMatchesSerialize(t *testing.T) {
	entries := sampleEntries(t)

	var buf bytes.Buffer
	if err := (&SRTWriter{}).Write(&buf, entries); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if buf.String() != Serialize(entries) {
		t.Errorf("SRT writer output differs from Serialize:\n%s", buf.String())
	}
}

func TestVTTWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&VTTWriter{}).Write(&buf, sampleEntries(t)); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "WEBVTT\n\n") {
		t.Errorf("missing WEBVTT header:\n%s", out)
	}
	if !strings.Contains(out, "00:00:00.000 --> 00:00:01.111") {
		t.Errorf("missing first cue timing:\n%s", out)
	}
	if !strings.Contains(out, "00:00:02.500 --> 00:00:04.000\nこんにちは") {
		t.Errorf("missing last cue:\n%s", out)
	}
}

func TestASSWriter(t *testing.T) {
	w, err := NewWriter(FormatASS)
	if err != nil {
		t.Fatalf("NewWriter error: %v", err)
	}

	var buf bytes.Buffer
	if err := w.Write(&buf, sampleEntries(t)); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[Events]") {
		t.Errorf("missing events section:\n%s", out)
	}
	if !strings.Contains(out, "Dialogue: 0,0:00:00.00,0:00:01.11,Default,,0,0,0,,AAAAA\n") {
		t.Errorf("missing first dialogue line:\n%s", out)
	}
}

func TestWriteFileCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.srt")
	entries := sampleEntries(t)

	if err := WriteFile(path, FormatSRT, entries); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if string(data) != Serialize(entries) {
		t.Errorf("file content differs from Serialize:\n%s", data)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{name: "srt", want: FormatSRT},
		{name: " VTT ", want: FormatVTT},
		{name: "ass", want: FormatASS},
		{name: "txt", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestFormatExtensions(t *testing.T) {
	for _, f := range []Format{FormatSRT, FormatVTT, FormatASS} {
		ext := GetExtensionForFormat(f)
		if got := GetFormatFromExtension("movie" + ext); got != f {
			t.Errorf("GetFormatFromExtension(%q) = %q, want %q", "movie"+ext, got, f)
		}
	}
}
