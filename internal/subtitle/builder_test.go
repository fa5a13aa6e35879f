package subtitle

import (
	"errors"
	"testing"
)

func TestBuildWorkedExample(t *testing.T) {
	segments := []Segment{
		{Start: 0.0, End: 2.0, Text: "AAAAA、BBB"},
	}

	result, err := Build(segments, 5)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if result.Count() != 2 {
		t.Fatalf("expected 2 entries, got %d", result.Count())
	}

	first, second := result.Entries[0], result.Entries[1]
	if first.Text != "AAAAA" || second.Text != "、BBB" {
		t.Errorf("texts = %q, %q; want \"AAAAA\", \"、BBB\"", first.Text, second.Text)
	}
	if first.Start != "00:00:00,000" {
		t.Errorf("first start = %q, want 00:00:00,000", first.Start)
	}
	if first.End != "00:00:01,111" {
		t.Errorf("first end = %q, want 00:00:01,111", first.End)
	}
	if second.Start != "00:00:01,111" {
		t.Errorf("second start = %q, want 00:00:01,111", second.Start)
	}
	if second.End != "00:00:02,000" {
		t.Errorf("second end = %q, want 00:00:02,000", second.End)
	}
	if result.Duration != 2.0 {
		t.Errorf("duration = %v, want 2.0", result.Duration)
	}
}

func TestBuildIndexIsGlobal(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 3, Text: "あいうえおかきくけこ"},
		{Start: 3, End: 4, Text: "さしすせそ"},
		{Start: 4, End: 9, Text: "たちつてと、なにぬねの。はひふへほ"},
	}

	result, err := Build(segments, 5)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if result.Count() < 5 {
		t.Fatalf("expected at least 5 entries, got %d", result.Count())
	}
	for i, e := range result.Entries {
		if e.Index != i+1 {
			t.Errorf("entry %d has index %d, want %d", i, e.Index, i+1)
		}
	}
}

func TestBuildPinsSegmentEnd(t *testing.T) {
	segments := []Segment{
		{Start: 0.1, End: 3.3, Text: "吾輩は猫である。名前はまだ無い。"},
		{Start: 3.3, End: 7.77, Text: "どこで生れたかとんと見当がつかぬ、何でも薄暗いじめじめした所で"},
		{Start: 10.01, End: 10.02, Text: "ニャーニャー泣いていた"},
	}

	result, err := Build(segments, 7)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	// walk entries per segment by re-splitting with the same limit
	pos := 0
	for _, seg := range segments {
		chunks, _ := SplitText(seg.Text, 7)
		group := result.Entries[pos : pos+len(chunks)]
		pos += len(chunks)

		if group[0].StartSeconds != seg.Start {
			t.Errorf("segment %q: first start %v, want %v", seg.Text, group[0].StartSeconds, seg.Start)
		}
		last := group[len(group)-1]
		if last.EndSeconds != seg.End {
			t.Errorf("segment %q: last end %v, want exactly %v", seg.Text, last.EndSeconds, seg.End)
		}
		if last.End != FormatTimestamp(seg.End) {
			t.Errorf("segment %q: last end %q, want %q", seg.Text, last.End, FormatTimestamp(seg.End))
		}

		for i := 0; i+1 < len(group); i++ {
			if group[i].EndSeconds != group[i+1].StartSeconds {
				t.Errorf("segment %q: gap between entry %d and %d", seg.Text, group[i].Index, group[i+1].Index)
			}
			if group[i].End != group[i+1].Start {
				t.Errorf("segment %q: end %q != next start %q", seg.Text, group[i].End, group[i+1].Start)
			}
		}
	}
	if pos != result.Count() {
		t.Errorf("consumed %d entries, result has %d", pos, result.Count())
	}
}

func TestBuildSkipsBlankSegments(t *testing.T) {
	result, err := Build([]Segment{{Start: 0, End: 1, Text: "   "}}, 10)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if result.Count() != 0 {
		t.Errorf("expected no entries, got %d", result.Count())
	}
	if result.SRT != "" {
		t.Errorf("expected empty SRT, got %q", result.SRT)
	}
	if result.Duration != 0 {
		t.Errorf("expected zero duration, got %v", result.Duration)
	}
}

func TestBuildDurationIgnoresTrailingBlankSegments(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 1.5, Text: "はい"},
		{Start: 1.5, End: 2.25, Text: "そうです"},
		{Start: 2.25, End: 9, Text: ""},
	}

	result, err := Build(segments, 10)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if result.Duration != 2.25 {
		t.Errorf("duration = %v, want 2.25", result.Duration)
	}
}

func TestBuildInvertedSegmentPassesThrough(t *testing.T) {
	segments := []Segment{
		{Start: 5, End: 4, Text: "あいうえおかきくけこさ"},
	}

	result, err := Build(segments, 5)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if result.Count() != 3 {
		t.Fatalf("expected 3 entries, got %d", result.Count())
	}
	for _, e := range result.Entries[:2] {
		if e.StartSeconds != 5 || e.EndSeconds != 5 {
			t.Errorf("entry %d: [%v, %v], want zero-length at 5", e.Index, e.StartSeconds, e.EndSeconds)
		}
	}
	last := result.Entries[2]
	if last.StartSeconds != 5 || last.EndSeconds != 4 {
		t.Errorf("last entry: [%v, %v], want [5, 4]", last.StartSeconds, last.EndSeconds)
	}
}

func TestBuildSerializesEntries(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 1, Text: "こんにちは"},
		{Start: 1.5, End: 3, Text: "さようなら"},
	}

	result, err := Build(segments, 10)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	want := "1\n00:00:00,000 --> 00:00:01,000\nこんにちは\n\n" +
		"2\n00:00:01,500 --> 00:00:03,000\nさようなら\n"
	if result.SRT != want {
		t.Errorf("SRT =\n%q\nwant\n%q", result.SRT, want)
	}
}

func TestBuildRejectsNonPositiveLimit(t *testing.T) {
	_, err := Build([]Segment{{Start: 0, End: 1, Text: "x"}}, 0)
	if !errors.Is(err, ErrInvalidMaxChars) {
		t.Errorf("expected ErrInvalidMaxChars, got %v", err)
	}
}

func TestBuildIsReentrant(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2, Text: "今日は晴れ。明日は雨。"},
	}

	first, err := Build(segments, 6)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	second, err := Build(segments, 6)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if first.SRT != second.SRT {
		t.Errorf("repeated Build calls differ:\n%q\n%q", first.SRT, second.SRT)
	}
	if second.Entries[0].Index != 1 {
		t.Errorf("second call starts at index %d, want 1", second.Entries[0].Index)
	}
}
