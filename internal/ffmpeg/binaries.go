package ffmpeg

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

const (
	ffmpegPathEnv  = "JIMAKU_FFMPEG_PATH"
	ffprobePathEnv = "JIMAKU_FFPROBE_PATH"
)

// ErrNotFound is returned when no ffmpeg executable can be located.
var ErrNotFound = errors.New("ffmpeg not found: install it or set " + ffmpegPathEnv)

type BinaryPaths struct {
	FFmpeg  string
	FFprobe string
}

var (
	ensureOnce sync.Once
	ensureErr  error
	ensurePath BinaryPaths
)

// Ensure resolves the ffmpeg and ffprobe executables once per process.
func Ensure() (BinaryPaths, error) {
	ensureOnce.Do(func() {
		ensurePath, ensureErr = resolve(os.Getenv, exec.LookPath)
	})
	return ensurePath, ensureErr
}

func FFmpegPath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFmpeg, nil
}

// FFprobePath is optional; an empty path with a nil error means ffprobe
// was not found.
func FFprobePath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFprobe, nil
}

func resolve(
	getenv func(string) string,
	lookPath func(string) (string, error),
) (BinaryPaths, error) {
	paths := BinaryPaths{
		FFmpeg:  getenv(ffmpegPathEnv),
		FFprobe: getenv(ffprobePathEnv),
	}

	if paths.FFmpeg != "" {
		if !fileExists(paths.FFmpeg) {
			return BinaryPaths{}, fmt.Errorf("%s points to missing file %s", ffmpegPathEnv, paths.FFmpeg)
		}
	} else if found, err := lookPath("ffmpeg"); err == nil {
		paths.FFmpeg = found
	} else {
		return BinaryPaths{}, ErrNotFound
	}

	if paths.FFprobe == "" {
		if found, err := lookPath("ffprobe"); err == nil {
			paths.FFprobe = found
		}
	}

	return paths, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}
