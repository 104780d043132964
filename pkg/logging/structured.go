package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps both slog and zap loggers
type Logger struct {
	slog *slog.Logger
	zap  *zap.Logger
}

// Config holds logging configuration
type Config struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"` // "json" or "console"
	Output    string `mapstructure:"output"` // "stdout" or "stderr"
	AddCaller bool   `mapstructure:"add_caller"`
	AddStack  bool   `mapstructure:"add_stack"`
}

// DefaultConfig logs info and above as console lines on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Output: "stderr",
	}
}

// NewLogger creates a new structured logger
func NewLogger(config Config) (*Logger, error) {
	if config.Format == "" {
		config.Format = "json"
	}
	if config.Output == "" {
		config.Output = "stderr"
	}

	// Create slog logger
	slogLevel := parseSlogLevel(config.Level)
	slogHandler := slog.NewJSONHandler(outputWriter(config.Output), &slog.HandlerOptions{
		Level: slogLevel,
	})
	slogLogger := slog.New(slogHandler)

	// Create zap logger
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = parseZapLevel(config.Level)
	zapConfig.Encoding = config.Format
	if config.Format == "console" {
		zapConfig.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zapConfig.OutputPaths = []string{config.Output}
	zapConfig.ErrorOutputPaths = []string{config.Output}
	zapConfig.DisableCaller = !config.AddCaller
	zapConfig.DisableStacktrace = !config.AddStack

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	// slog mirrors zap only for json output
	if config.Format != "json" {
		slogLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	return &Logger{
		slog: slogLogger,
		zap:  zapLogger,
	}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{
		slog: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		zap:  zap.NewNop(),
	}
}

// NewWithCore builds a logger on an existing zap core. Tests use it with
// zaptest/observer.
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{
		slog: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		zap:  zap.New(core),
	}
}

func outputWriter(output string) io.Writer {
	switch output {
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	return io.Discard
}

// parseSlogLevel parses slog level from string
func parseSlogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseZapLevel parses zap level from string
func parseZapLevel(level string) zap.AtomicLevel {
	switch level {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

// WithRunID adds the training run ID to logger context
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		slog: l.slog.With("run_id", runID),
		zap:  l.zap.With(zap.String("run_id", runID)),
	}
}

// WithTraceID adds trace ID to logger context
func (l *Logger) WithTraceID(ctx context.Context, traceID string) *Logger {
	return &Logger{
		slog: l.slog.With("trace_id", traceID),
		zap:  l.zap.With(zap.String("trace_id", traceID)),
	}
}

// WithFields adds fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	slogAttrs := make([]any, 0, len(fields)*2)
	zapFields := make([]zap.Field, 0, len(fields))

	for key, value := range fields {
		slogAttrs = append(slogAttrs, key, value)
		zapFields = append(zapFields, zap.Any(key, value))
	}

	return &Logger{
		slog: l.slog.With(slogAttrs...),
		zap:  l.zap.With(zapFields...),
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.slog.Debug(msg, args...)
	l.zap.Debug(msg, convertToZapFields(args)...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.slog.Info(msg, args...)
	l.zap.Info(msg, convertToZapFields(args)...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.slog.Warn(msg, args...)
	l.zap.Warn(msg, convertToZapFields(args)...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.slog.Error(msg, args...)
	l.zap.Error(msg, convertToZapFields(args)...)
}

// convertToZapFields converts interface{} args to zap.Field
func convertToZapFields(args []interface{}) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields = append(fields, zap.Any(key, args[i+1]))
		}
	}
	return fields
}

// LogEpoch logs the end of a training epoch
func (l *Logger) LogEpoch(ctx context.Context, epoch int, loss float64, batches int, duration time.Duration) {
	fields := map[string]interface{}{
		"epoch":       epoch,
		"loss":        loss,
		"batches":     batches,
		"duration_ms": float64(duration.Nanoseconds()) / 1e6,
	}

	logger := l.WithFields(fields)
	logger.Info("Epoch completed")
}

// LogEvaluation logs ranking metrics
func (l *Logger) LogEvaluation(ctx context.Context, filtered bool, meanRank float64, hits1, hits10, hits100 int, pairs int) {
	fields := map[string]interface{}{
		"filtered":  filtered,
		"mean_rank": meanRank,
		"hits_1":    hits1,
		"hits_10":   hits10,
		"hits_100":  hits100,
		"pairs":     pairs,
	}

	logger := l.WithFields(fields)
	logger.Info("Ranking evaluation completed")
}

// LogNormalization logs the outcome of normalizing one split
func (l *Logger) LogNormalization(ctx context.Context, subset string, axioms, emitted, skipped, fresh int) {
	fields := map[string]interface{}{
		"subset":  subset,
		"axioms":  axioms,
		"emitted": emitted,
		"skipped": skipped,
		"fresh":   fresh,
	}

	logger := l.WithFields(fields)
	if skipped > 0 {
		logger.Warn("Normalization skipped unsupported axioms")
	} else {
		logger.Info("Normalization completed")
	}
}

// Sync syncs the logger
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// GetSlog returns the slog logger
func (l *Logger) GetSlog() *slog.Logger {
	return l.slog
}

// GetZap returns the zap logger
func (l *Logger) GetZap() *zap.Logger {
	return l.zap
}
