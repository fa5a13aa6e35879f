package subtitle

import (
	"io"
)

// represents transcribed speech segment, times in seconds
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// represents single subtitle entry
type Entry struct {
	Index int    `json:"index"`
	Start string `json:"start"`
	End   string `json:"end"`
	Text  string `json:"text"`

	// unformatted times the timecodes were rendered from
	StartSeconds float64 `json:"-"`
	EndSeconds   float64 `json:"-"`
}

// output of one Build call
type Result struct {
	SRT     string
	Entries []Entry
	// end of the last segment that produced at least one entry
	Duration float64
}

// Count returns the number of entries.
func (r *Result) Count() int {
	return len(r.Entries)
}

// represents supported subtitle formats
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatASS Format = "ass"
)

// interface for writing subtitles
type Writer interface {
	Write(w io.Writer, entries []Entry) error
}
