package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mgpai22/jimaku/internal/logging"
)

var (
	verbose bool
	logger  *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "jimaku",
	Short: "Speech to subtitle service and CLI",
	Long: `Jimaku turns spoken audio into SRT subtitles.

It transcribes audio or video with a speech recognition provider, splits
the transcript into short subtitle lines and can serve the same pipeline
over HTTP with a small upload page.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = logging.NewLogger(verbose)
		}
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path")
	rootCmd.PersistentFlags().
		StringP("language", "l", "", "Language code of the speech (default ja)")
}

// apiKeyEnv names the environment variable holding a provider's key.
func apiKeyEnv(provider string) string {
	switch provider {
	case "gemini":
		return "GEMINI_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return "API_KEY"
	}
}

// resolveAPIKey prefers the flag value and falls back to the provider's
// environment variable.
func resolveAPIKey(provider, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	env := apiKeyEnv(provider)
	if key := os.Getenv(env); key != "" {
		return key, nil
	}
	return "", &missingKeyError{env: env}
}

type missingKeyError struct {
	env string
}

func (e *missingKeyError) Error() string {
	return "API key is required: use --api-key flag or set " + e.env + " environment variable"
}
