package audio

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMediaKinds(t *testing.T) {
	tests := []struct {
		path  string
		video bool
		audio bool
	}{
		{"movie.mp4", true, false},
		{"MOVIE.MKV", true, false},
		{"clip.webm", true, false},
		{"voice.wav", false, true},
		{"song.MP3", false, true},
		{"memo.m4a", false, true},
		{"notes.txt", false, false},
		{"noext", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsVideoFile(tt.path); got != tt.video {
				t.Errorf("IsVideoFile = %v, want %v", got, tt.video)
			}
			if got := IsAudioFile(tt.path); got != tt.audio {
				t.Errorf("IsAudioFile = %v, want %v", got, tt.audio)
			}
			if got := IsMediaFile(tt.path); got != (tt.video || tt.audio) {
				t.Errorf("IsMediaFile = %v", got)
			}
		})
	}
}

func TestExtractArgs(t *testing.T) {
	args := extractArgs(DefaultExtractOptions())
	if args["ar"] != SampleRate || args["ac"] != 1 || args["c:a"] != "pcm_s16le" {
		t.Errorf("unexpected wav args: %v", args)
	}
	if _, ok := args["b:a"]; ok {
		t.Error("bitrate should not be set for wav")
	}

	args = extractArgs(ExtractOptions{Format: "mp3", Bitrate: "64k"})
	if args["c:a"] != "libmp3lame" || args["b:a"] != "64k" {
		t.Errorf("unexpected mp3 args: %v", args)
	}
	if _, ok := args["ar"]; ok {
		t.Error("sample rate should be left to ffmpeg when unset")
	}
}

func TestPlanChunks(t *testing.T) {
	jobs := planChunks("/tmp/in/talk.wav", 25*time.Second, 10*time.Second, "/tmp/out")
	if len(jobs) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(jobs))
	}

	last := jobs[2]
	if last.StartTime != 20*time.Second || last.EndTime != 25*time.Second {
		t.Errorf("last chunk = %v-%v", last.StartTime, last.EndTime)
	}
	if last.Path != filepath.Join("/tmp/out", "talk_chunk_002.wav") {
		t.Errorf("last chunk path = %q", last.Path)
	}
	for i, job := range jobs {
		if job.Index != i {
			t.Errorf("chunk %d has index %d", i, job.Index)
		}
	}

	if got := planChunks("a.wav", 0, time.Second, "/tmp"); len(got) != 0 {
		t.Errorf("zero duration should give no chunks, got %d", len(got))
	}
}

func TestChunkAudioRejectsNonPositiveDuration(t *testing.T) {
	_, err := ChunkAudio(context.Background(), "missing.wav", time.Minute, 0, t.TempDir(), 0)
	if err == nil {
		t.Error("expected error for zero chunk duration")
	}
}

func TestParseProbeDuration(t *testing.T) {
	got, err := parseProbeDuration([]byte(`{"format": {"duration": "12.500000"}}`))
	if err != nil {
		t.Fatalf("parseProbeDuration error: %v", err)
	}
	if got != 12500*time.Millisecond {
		t.Errorf("duration = %v, want 12.5s", got)
	}

	if _, err := parseProbeDuration([]byte(`{"format": {}}`)); err == nil {
		t.Error("expected error for missing duration")
	}
}

func TestTail(t *testing.T) {
	long := strings.Repeat("a", 1000) + "  the end\n"
	got := tail(long, 20)
	if len(got) > 20 || !strings.HasSuffix(got, "the end") {
		t.Errorf("tail = %q", got)
	}
	if got := tail(" short \n", 600); got != "short" {
		t.Errorf("tail = %q", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &Error{Err: inner, Stderr: "Invalid data found when processing input"}

	if !errors.Is(err, inner) {
		t.Error("expected wrapped error to match")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("message missing stderr: %q", err.Error())
	}
}

func TestConvertToWAVMissingInput(t *testing.T) {
	dir := t.TempDir()
	err := ConvertToWAV(context.Background(), filepath.Join(dir, "nope.mp3"), filepath.Join(dir, "out.wav"))
	if err == nil {
		t.Error("expected error for missing input")
	}
}

func TestConvertToWAV(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	writeTestWAV(t, in, 8000, 16, 2, make([]int16, 8000*2))

	out := filepath.Join(dir, "out.wav")
	if err := ConvertToWAV(context.Background(), in, out); err != nil {
		t.Fatalf("ConvertToWAV error: %v", err)
	}

	pcm, err := LoadWAV(out)
	if err != nil {
		t.Fatalf("LoadWAV error: %v", err)
	}
	if pcm.SampleRate != SampleRate {
		t.Errorf("sample rate = %d, want %d", pcm.SampleRate, SampleRate)
	}
	if d := pcm.Duration(); d < 0.95 || d > 1.05 {
		t.Errorf("duration = %v, want about 1s", d)
	}
}
