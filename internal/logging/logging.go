package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger shared by the CLI and the HTTP service.
type Logger struct {
	*zap.SugaredLogger
}

// NewLogger builds a console logger at debug level when verbose is set and
// info level otherwise.
func NewLogger(verbose bool) *Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = !verbose

	logger, err := cfg.Build()
	if err != nil {
		return Nop()
	}
	return New(logger)
}

// NewProduction builds a JSON logger suitable for the long running server.
func NewProduction() *Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return Nop()
	}
	return New(logger)
}

// New wraps an existing zap logger.
func New(logger *zap.Logger) *Logger {
	return &Logger{SugaredLogger: logger.Sugar()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(zap.NewNop())
}
