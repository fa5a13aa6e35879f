package subtitle

import (
	"strings"
	"unicode/utf8"
)

// accumulator carries the state of a single Build call.
type accumulator struct {
	maxChars int
	next     int
	entries  []Entry
	lastEnd  float64
}

// Build splits every segment into chunks of at most maxChars code points and
// spreads each segment's time span over its chunks in proportion to their
// length. The last chunk of a segment always ends exactly at the segment end.
//
// Segments with end < start are treated as zero length; their last chunk is
// still pinned to end, so such an entry may end before it starts.
func Build(segments []Segment, maxChars int) (*Result, error) {
	if maxChars < 1 {
		return nil, ErrInvalidMaxChars
	}

	acc := &accumulator{maxChars: maxChars, next: 1}
	for _, seg := range segments {
		if err := acc.add(seg); err != nil {
			return nil, err
		}
	}

	return &Result{
		SRT:      Serialize(acc.entries),
		Entries:  acc.entries,
		Duration: acc.lastEnd,
	}, nil
}

func (a *accumulator) add(seg Segment) error {
	text := strings.TrimSpace(seg.Text)
	if text == "" {
		return nil
	}

	chunks, err := SplitText(text, a.maxChars)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	totalChars := 0
	for _, c := range chunks {
		totalChars += utf8.RuneCountInString(c)
	}
	duration := max(seg.End-seg.Start, 0)
	current := seg.Start

	for i, chunk := range chunks {
		var chunkEnd float64
		switch {
		case i == len(chunks)-1:
			chunkEnd = seg.End
		case totalChars > 0:
			share := float64(utf8.RuneCountInString(chunk)) / float64(totalChars)
			chunkEnd = current + duration*share
		default:
			chunkEnd = current + duration/float64(len(chunks))
		}

		a.entries = append(a.entries, Entry{
			Index:        a.next,
			Start:        FormatTimestamp(current),
			End:          FormatTimestamp(chunkEnd),
			Text:         chunk,
			StartSeconds: current,
			EndSeconds:   chunkEnd,
		})
		a.next++
		current = chunkEnd
	}

	a.lastEnd = seg.End
	return nil
}
