package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/mgpai22/jimaku/internal/audio"
	"github.com/mgpai22/jimaku/internal/config"
	"github.com/mgpai22/jimaku/internal/logging"
	"github.com/mgpai22/jimaku/internal/transcribe"
)

//go:embed static
var staticFiles embed.FS

// ModelSource hands out transcribers by model name.
type ModelSource interface {
	Get(ctx context.Context, model string) (transcribe.Transcriber, error)
}

type (
	convertFunc  func(ctx context.Context, inputPath, outputPath string) error
	durationFunc func(path string) (time.Duration, error)
)

type Server struct {
	cfg    *config.Config
	logger *logging.Logger
	mux    *http.ServeMux
	models ModelSource

	convert     convertFunc
	wavDuration durationFunc
	tempDir     string
}

type Option func(*Server)

// WithConverter replaces the ffmpeg WAV conversion step.
func WithConverter(fn func(ctx context.Context, inputPath, outputPath string) error) Option {
	return func(s *Server) { s.convert = fn }
}

// WithWAVDuration replaces the step that reads the converted WAV's length.
func WithWAVDuration(fn func(path string) (time.Duration, error)) Option {
	return func(s *Server) { s.wavDuration = fn }
}

// WithTempDir sets where uploads are staged; empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(s *Server) { s.tempDir = dir }
}

func New(cfg *config.Config, logger *logging.Logger, models ModelSource, opts ...Option) *Server {
	if logger == nil {
		logger = logging.Nop()
	}

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		mux:         http.NewServeMux(),
		models:      models,
		convert:     audio.ConvertToWAV,
		wavDuration: audio.WAVDuration,
		tempDir:     cfg.Server.TempDir,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	s.mux.Handle("/api/transcribe", http.HandlerFunc(s.handleTranscribe))

	static, _ := fs.Sub(staticFiles, "static")
	s.mux.Handle("GET /{$}", http.FileServerFS(static))
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = Auth(s.cfg.Auth.APISecretKey, h)
	h = CORS(s.cfg.Server.AllowedOrigin, h)
	h = Recover(s.logger, h)
	h = AccessLog(s.logger, h)
	h = RequestID(h)
	return h
}

// Run serves until ctx is cancelled and then drains in-flight requests for
// up to the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
	}

	s.logger.Infow("starting server",
		"addr", httpSrv.Addr,
		"provider", s.cfg.Transcription.Provider,
		"auth", s.cfg.Auth.APISecretKey != "",
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Infow("shutdown signal received")
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	s.logger.Infow("server stopped")
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
