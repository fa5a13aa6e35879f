package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mgpai22/jimaku/internal/audio"
	"github.com/mgpai22/jimaku/internal/subtitle"
)

// fakeTranscriber returns canned results keyed by audio path.
type fakeTranscriber struct {
	results map[string]*Result
	err     error
	calls   atomic.Int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[audioPath]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("no result for %s", audioPath)
}

func TestTranscribeChunksMergesInOrder(t *testing.T) {
	chunks := []audio.ChunkInfo{
		{Path: "c0", Index: 0, StartTime: 0, EndTime: 10 * time.Second},
		{Path: "c1", Index: 1, StartTime: 10 * time.Second, EndTime: 20 * time.Second},
		{Path: "c2", Index: 2, StartTime: 20 * time.Second, EndTime: 25 * time.Second},
	}
	fake := &fakeTranscriber{results: map[string]*Result{
		"c0": {Segments: []subtitle.Segment{{Start: 1, End: 2, Text: "一"}}, Text: "一", Language: "ja"},
		"c1": {Segments: []subtitle.Segment{{Start: 0.5, End: 3, Text: "二"}}, Text: "二", Language: "ja"},
		"c2": {Segments: []subtitle.Segment{{Start: 4, End: 5, Text: "三"}}, Text: "三", Language: "ja"},
	}}

	result, err := TranscribeChunks(context.Background(), fake, chunks, 2)
	if err != nil {
		t.Fatalf("TranscribeChunks error: %v", err)
	}

	want := []subtitle.Segment{
		{Start: 1, End: 2, Text: "一"},
		{Start: 10.5, End: 13, Text: "二"},
		{Start: 24, End: 25, Text: "三"},
	}
	if len(result.Segments) != len(want) {
		t.Fatalf("got %d segments, want %d", len(result.Segments), len(want))
	}
	for i := range want {
		if result.Segments[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, result.Segments[i], want[i])
		}
	}
	if result.Text != "一二三" {
		t.Errorf("text = %q", result.Text)
	}
	if result.Duration != 25 {
		t.Errorf("duration = %v, want 25", result.Duration)
	}
	if got := fake.calls.Load(); got != 3 {
		t.Errorf("transcriber called %d times, want 3", got)
	}
}

func TestTranscribeChunksPropagatesError(t *testing.T) {
	boom := errors.New("quota exceeded")
	fake := &fakeTranscriber{err: boom}
	chunks := []audio.ChunkInfo{{Path: "c0"}, {Path: "c1", Index: 1}}

	_, err := TranscribeChunks(context.Background(), fake, chunks, 0)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestTranscribeChunksEmpty(t *testing.T) {
	result, err := TranscribeChunks(context.Background(), &fakeTranscriber{}, nil, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Segments) != 0 {
		t.Errorf("expected no segments, got %d", len(result.Segments))
	}
}

func TestTranscribeFileWithoutChunking(t *testing.T) {
	fake := &fakeTranscriber{results: map[string]*Result{
		"talk.wav": {Text: "whole"},
	}}

	tests := []ChunkOptions{
		{},
		{ChunkDuration: 10 * time.Minute, Total: 5 * time.Minute},
		{ChunkDuration: 10 * time.Minute, Total: 10 * time.Minute},
	}

	for _, opts := range tests {
		result, err := TranscribeFile(context.Background(), fake, "talk.wav", opts)
		if err != nil {
			t.Fatalf("TranscribeFile(%+v) error: %v", opts, err)
		}
		if result.Text != "whole" {
			t.Errorf("TranscribeFile(%+v) text = %q", opts, result.Text)
		}
	}
}

func TestJoinText(t *testing.T) {
	parts := []string{"first", "second"}
	if got := joinText(parts, "en"); got != "first second" {
		t.Errorf("joinText en = %q", got)
	}
	if got := joinText(parts, "JA"); got != "firstsecond" {
		t.Errorf("joinText ja = %q", got)
	}
}

func TestSegmentsText(t *testing.T) {
	segments := []subtitle.Segment{{Text: " hello "}, {Text: "  "}, {Text: "world"}}
	if got := segmentsText(segments, "en"); got != "hello world" {
		t.Errorf("segmentsText = %q", got)
	}
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	_, err := Factory(context.Background(), Provider("whisper.cpp"), "key", Options{})
	if err == nil || !strings.Contains(err.Error(), "unsupported provider") {
		t.Errorf("expected unsupported provider error, got %v", err)
	}
}

func TestFactoryOpenAIRequiresKey(t *testing.T) {
	if _, err := Factory(context.Background(), ProviderOpenAI, "", Options{}); err == nil {
		t.Error("expected error for missing API key")
	}
}
