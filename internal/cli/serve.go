package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mgpai22/jimaku/internal/config"
	"github.com/mgpai22/jimaku/internal/ffmpeg"
	"github.com/mgpai22/jimaku/internal/logging"
	"github.com/mgpai22/jimaku/internal/server"
	"github.com/mgpai22/jimaku/internal/transcribe"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP transcription service",
	Long: `Serve the upload page on / and the transcription API on
POST /api/transcribe.

Settings are read from the YAML file given by --config (a missing file
means defaults) and then from the environment: PORT, API_SECRET_KEY,
ALLOWED_ORIGIN, JIMAKU_PROVIDER and OPENAI_API_KEY or GEMINI_API_KEY.

Examples:
  jimaku serve
  jimaku serve --config /etc/jimaku/config.yaml --json-logs
  PORT=8080 API_SECRET_KEY=s3cret jimaku serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().
		String("config", "config.yaml", "Path to the YAML configuration file")
	serveCmd.Flags().
		String("host", "", "Listen host (overrides config)")
	serveCmd.Flags().
		Int("port", 0, "Listen port (overrides config and PORT)")
	serveCmd.Flags().
		Bool("json-logs", false, "Log JSON lines instead of console output")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	srvLogger := logger
	if jsonLogs {
		srvLogger = logging.NewProduction()
	}
	defer func() { _ = srvLogger.Sync() }()

	bins, err := ffmpeg.Ensure()
	if err != nil {
		return err
	}
	srvLogger.Debugw("Using ffmpeg", "ffmpeg", bins.FFmpeg, "ffprobe", bins.FFprobe)

	models, err := newModelCache(cfg)
	if err != nil {
		return err
	}
	srvLogger.Infow("Transcription models",
		"provider", cfg.Transcription.Provider,
		"default", models.DefaultModel(),
		"allowed", models.Models(),
	)

	return server.New(cfg, srvLogger, models).Run(cmd.Context())
}

// newModelCache builds the per-model transcriber cache for the configured
// provider. Transcribers are created lazily on first request.
func newModelCache(cfg *config.Config) (*transcribe.Cache, error) {
	provider := transcribe.Provider(cfg.Transcription.Provider)
	apiKey := cfg.Transcription.APIKey
	if apiKey == "" {
		return nil, fmt.Errorf("no API key for provider %s: set transcription.api_key or %s",
			provider, apiKeyEnv(string(provider)))
	}

	defaultModel := cfg.Transcription.DefaultModel
	if defaultModel == "" {
		defaultModel = transcribe.DefaultModel(provider)
	}
	allowed := cfg.Transcription.Models
	if len(allowed) == 0 {
		allowed = transcribe.DefaultModels(provider)
	}
	if !slices.Contains(allowed, defaultModel) {
		allowed = append(slices.Clone(allowed), defaultModel)
	}

	newFunc := func(ctx context.Context, model string) (transcribe.Transcriber, error) {
		return transcribe.Factory(ctx, provider, apiKey, transcribe.Options{
			Language: cfg.Transcription.Language,
			Model:    model,
		})
	}
	return transcribe.NewCache(newFunc, defaultModel, allowed), nil
}
