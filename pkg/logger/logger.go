package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	Debug bool
	// Writer defaults to stderr so command output on stdout stays parseable.
	Writer io.Writer
}

// NewLogger builds a console zap logger. Debug enables debug level and caller annotations.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	if cfg == nil {
		cfg = &LoggerConfig{}
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    coloredLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := zapcore.InfoLevel
	opts := []zap.Option{}
	if cfg.Debug {
		level = zapcore.DebugLevel
		opts = append(opts, zap.AddCaller())
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), level)
	return zap.New(core, opts...), nil
}

func coloredLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var c *color.Color
	switch l {
	case zapcore.DebugLevel:
		c = color.New(color.FgWhite)
	case zapcore.InfoLevel:
		c = color.New(color.FgBlue)
	case zapcore.WarnLevel:
		c = color.New(color.FgYellow)
	case zapcore.ErrorLevel:
		c = color.New(color.FgRed)
	default:
		c = color.New(color.FgRed, color.Bold)
	}
	enc.AppendString(c.Sprint(l.CapitalString()))
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05"))
}

type ctxKey string

const loggerKey ctxKey = "logger"

func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}
