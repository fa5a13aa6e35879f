package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/jimaku/internal/audio"
)

var extractCmd = &cobra.Command{
	Use:   "extract [media_file]",
	Short: "Extract or convert the audio track of a media file",
	Long: `Extract the audio track from a video (or re-encode an audio file) and
save it as a separate audio file. The defaults produce the 16 kHz mono WAV
the transcription pipeline works on.

Supports multiple output formats: wav, mp3, aac, flac.

Examples:
  jimaku extract episode01.mp4
  jimaku extract episode01.mp4 -o audio.mp3 -f mp3 -b 64k
  jimaku extract episode01.mkv --format wav --sample-rate 44100 --channels 2`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

var extractFormats = map[string]bool{
	"wav":  true,
	"mp3":  true,
	"aac":  true,
	"flac": true,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	defaults := audio.DefaultExtractOptions()
	extractCmd.Flags().
		StringP("format", "f", defaults.Format, "Output audio format (wav, mp3, aac, flac)")
	extractCmd.Flags().
		IntP("sample-rate", "r", defaults.SampleRate, "Sample rate in Hz (e.g., 16000, 44100, 48000)")
	extractCmd.Flags().
		IntP("channels", "c", defaults.Channels, "Number of audio channels (1=mono, 2=stereo)")
	extractCmd.Flags().
		StringP("bitrate", "b", "", "Bitrate for lossy formats (e.g., 128k, 320k)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	mediaPath := args[0]

	format, _ := cmd.Flags().GetString("format")
	sampleRate, _ := cmd.Flags().GetInt("sample-rate")
	channels, _ := cmd.Flags().GetInt("channels")
	bitrate, _ := cmd.Flags().GetString("bitrate")
	outputPath, _ := cmd.Flags().GetString("output")

	format = strings.ToLower(strings.TrimSpace(format))
	if !extractFormats[format] {
		return fmt.Errorf(
			"invalid format %q: supported formats are wav, mp3, aac, flac",
			format,
		)
	}
	if !audio.IsMediaFile(mediaPath) {
		return fmt.Errorf("unsupported file type: %s (expected audio or video file)", filepath.Ext(mediaPath))
	}
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("sample-rate and channels must be positive")
	}

	if outputPath == "" {
		outputPath = strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + "." + format
	}
	if filepath.Clean(outputPath) == filepath.Clean(mediaPath) {
		return fmt.Errorf("output %s would overwrite the input", outputPath)
	}

	logger.Infow("Extracting audio",
		"input", mediaPath,
		"output", outputPath,
		"format", format,
		"sample_rate", sampleRate,
		"channels", channels,
	)

	opts := audio.ExtractOptions{
		Format:     format,
		SampleRate: sampleRate,
		Channels:   channels,
		Bitrate:    bitrate,
	}
	if err := audio.ExtractAudio(cmd.Context(), mediaPath, outputPath, opts); err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Audio extracted successfully: %s\n", absOutput)

	return nil
}
