package audio

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// PCM is a decoded mono signal with samples in [-1, 1].
type PCM struct {
	SampleRate int
	Samples    []float32
}

// Duration returns the signal length in seconds.
func (p *PCM) Duration() float64 {
	if p == nil || p.SampleRate <= 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}

// Length returns Duration as a time.Duration.
func (p *PCM) Length() time.Duration {
	return time.Duration(p.Duration() * float64(time.Second))
}

func LoadWAV(path string) (*PCM, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer file.Close()

	pcm, err := DecodeWAV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pcm, nil
}

// DecodeWAV reads a 16-bit PCM WAV stream. Multi-channel input is downmixed
// by averaging.
func DecodeWAV(r io.Reader) (*PCM, error) {
	streamer, format, err := decodeHeader(r)
	if err != nil {
		return nil, err
	}

	pcm := &PCM{
		SampleRate: int(format.SampleRate),
		Samples:    make([]float32, 0, max(streamer.Len(), 0)),
	}

	buf := make([][2]float64, 4096)
	for {
		n, ok := streamer.Stream(buf)
		for _, frame := range buf[:n] {
			pcm.Samples = append(pcm.Samples, float32((frame[0]+frame[1])/2))
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}

	return pcm, nil
}

// WAVDuration reads the length of a 16-bit PCM WAV file from its header
// without decoding the samples.
func WAVDuration(path string) (time.Duration, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer file.Close()

	streamer, format, err := decodeHeader(file)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if format.SampleRate <= 0 {
		return 0, fmt.Errorf("%s: invalid sample rate %d", path, format.SampleRate)
	}
	return format.SampleRate.D(max(streamer.Len(), 0)), nil
}

func decodeHeader(r io.Reader) (beep.StreamSeekCloser, beep.Format, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode wav: %w", err)
	}
	if format.Precision != 2 {
		return nil, beep.Format{}, fmt.Errorf(
			"unsupported sample width: %d bytes, want 16-bit PCM",
			format.Precision,
		)
	}
	return streamer, format, nil
}
