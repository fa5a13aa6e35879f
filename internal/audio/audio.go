package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"golang.org/x/sync/errgroup"

	ffmpegbin "github.com/mgpai22/jimaku/internal/ffmpeg"
)

const (
	// recognition input: 16 kHz mono signed 16-bit PCM
	SampleRate = 16000

	stderrTail = 600
)

// audio chunk info
type ChunkInfo struct {
	Path      string
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
}

// options for audio extraction
type ExtractOptions struct {
	Format     string // Output format (wav, mp3, aac, flac)
	SampleRate int    // Sample rate in Hz
	Channels   int    // Number of channels (1=mono, 2=stereo)
	Bitrate    string // Bitrate for lossy formats (e.g., "64k")
}

// defaults for transcription
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		Format:     "wav",
		SampleRate: SampleRate,
		Channels:   1,
	}
}

// Error reports a failed ffmpeg run together with the end of its stderr.
type Error struct {
	Err    error
	Stderr string
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg: %v", e.Err)
	}
	return fmt.Sprintf("ffmpeg: %v\n%s", e.Err, e.Stderr)
}

func (e *Error) Unwrap() error { return e.Err }

// JSON output from ffprobe
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// duration of an audio/video file
func GetDuration(ctx context.Context, filePath string) (time.Duration, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return 0, fmt.Errorf("file not found: %s", filePath)
	}

	ffprobePath, err := ffmpegbin.FFprobePath()
	if err != nil {
		return 0, err
	}
	if ffprobePath == "" {
		return 0, errors.New("ffprobe not available")
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeDuration(out.Bytes())
}

func parseProbeDuration(data []byte) (time.Duration, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// ConvertToWAV transcodes any media ffmpeg can read into the 16 kHz mono
// 16-bit WAV the recognisers expect.
func ConvertToWAV(ctx context.Context, inputPath, outputPath string) error {
	return ExtractAudio(ctx, inputPath, outputPath, DefaultExtractOptions())
}

// extracts the audio track of a media file
func ExtractAudio(
	ctx context.Context,
	inputPath, outputPath string,
	opts ExtractOptions,
) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}

	outputDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := run(ctx, ffmpeg.Input(inputPath).
		Output(outputPath, extractArgs(opts)).
		OverWriteOutput(),
	); err != nil {
		return fmt.Errorf("audio extraction failed: %w", err)
	}

	return nil
}

func extractArgs(opts ExtractOptions) ffmpeg.KwArgs {
	kwargs := ffmpeg.KwArgs{
		"vn": "", // No video
	}
	if opts.SampleRate > 0 {
		kwargs["ar"] = opts.SampleRate
	}
	if opts.Channels > 0 {
		kwargs["ac"] = opts.Channels
	}

	switch opts.Format {
	case "mp3":
		kwargs["c:a"] = "libmp3lame"
	case "aac":
		kwargs["c:a"] = "aac"
	case "flac":
		kwargs["c:a"] = "flac"
	default:
		kwargs["c:a"] = "pcm_s16le"
	}
	if opts.Bitrate != "" && (opts.Format == "mp3" || opts.Format == "aac") {
		kwargs["b:a"] = opts.Bitrate
	}

	return kwargs
}

// ChunkAudio splits an audio file into chunks of chunkDuration. When
// totalDuration is unknown (<= 0) it is probed with ffprobe. At most
// concurrency ffmpeg processes run at once; 0 means 10.
func ChunkAudio(
	ctx context.Context,
	audioPath string,
	totalDuration, chunkDuration time.Duration,
	outputDir string,
	concurrency int,
) ([]ChunkInfo, error) {
	if chunkDuration <= 0 {
		return nil, fmt.Errorf(
			"chunk duration must be positive, got %v",
			chunkDuration,
		)
	}

	if concurrency <= 0 {
		concurrency = 10
	}

	if totalDuration <= 0 {
		probed, err := GetDuration(ctx, audioPath)
		if err != nil {
			return nil, fmt.Errorf("failed to get audio duration: %w", err)
		}
		totalDuration = probed
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	jobs := planChunks(audioPath, totalDuration, chunkDuration, outputDir)

	var (
		mu     sync.Mutex
		chunks = make([]ChunkInfo, 0, len(jobs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, job := range jobs {
		g.Go(func() error {
			kwargs := ffmpeg.KwArgs{
				"ss": job.StartTime.Seconds(),
				"t":  (job.EndTime - job.StartTime).Seconds(),
				"c":  "copy", // Copy codec for speed
			}

			err := run(gctx, ffmpeg.Input(audioPath).
				Output(job.Path, kwargs).
				OverWriteOutput(),
			)
			if err != nil {
				return fmt.Errorf("failed to create chunk %d: %w", job.Index, err)
			}

			mu.Lock()
			chunks = append(chunks, job)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		_ = CleanupChunks(chunks)
		return nil, err
	}

	// sort chunks by index to maintain order
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Index < chunks[j].Index
	})

	return chunks, nil
}

func planChunks(
	audioPath string,
	total, chunkDuration time.Duration,
	outputDir string,
) []ChunkInfo {
	baseName := strings.TrimSuffix(
		filepath.Base(audioPath),
		filepath.Ext(audioPath),
	)
	ext := filepath.Ext(audioPath)

	var jobs []ChunkInfo
	for i := 0; ; i++ {
		start := time.Duration(i) * chunkDuration
		if start >= total {
			break
		}
		end := min(start+chunkDuration, total)

		jobs = append(jobs, ChunkInfo{
			Path: filepath.Join(
				outputDir,
				fmt.Sprintf("%s_chunk_%03d%s", baseName, i, ext),
			),
			Index:     i,
			StartTime: start,
			EndTime:   end,
		})
	}
	return jobs
}

// removes all chunk files
func CleanupChunks(chunks []ChunkInfo) error {
	var lastErr error
	for _, chunk := range chunks {
		if err := os.Remove(chunk.Path); err != nil && !os.IsNotExist(err) {
			lastErr = err
		}
	}
	return lastErr
}

func run(ctx context.Context, stream *ffmpeg.Stream) error {
	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, ffmpegPath, stream.GetArgs()...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{Err: err, Stderr: tail(stderr.String(), stderrTail)}
	}
	return nil
}

// tail returns at most the last n bytes of s, trimmed.
func tail(s string, n int) string {
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return strings.TrimSpace(s)
}

var videoExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
}

var audioExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".m4a":  true,
	".wma":  true,
	".aiff": true,
}

// checks if the file is a video based on extension
func IsVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// checks if the file is an audio file based on extension
func IsAudioFile(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

// checks if the file is either audio or video
func IsMediaFile(path string) bool {
	return IsAudioFile(path) || IsVideoFile(path)
}
