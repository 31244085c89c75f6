package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger writes one JSON record per line to logs/app.jsonl, matching
// {timestamp, level, name, message, ...props}.
type ZapLogger struct {
	z    *zap.Logger
	name string
}

// NewZapLogger opens (creating as needed) path and returns a Logger backed
// by zap's JSON encoder. The returned closer should be deferred by the
// caller to flush buffered writes.
func NewZapLogger(path, name string) (*ZapLogger, func() error, error) {
	if err := os.MkdirAll(dirOf(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		LineEnding:     zapcore.DefaultLineEnding,
		CallerKey:      "",
		StacktraceKey:  "",
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(f), zapcore.DebugLevel)
	z := zap.New(core)

	return &ZapLogger{z: z, name: name}, f.Close, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func (l *ZapLogger) fields(args []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(args)/2+1)
	fields = append(fields, zap.String("name", l.name))
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}

func (l *ZapLogger) Debug(msg string, args ...interface{}) { l.z.Debug(msg, l.fields(args)...) }
func (l *ZapLogger) Info(msg string, args ...interface{})  { l.z.Info(msg, l.fields(args)...) }
func (l *ZapLogger) Warn(msg string, args ...interface{})  { l.z.Warn(msg, l.fields(args)...) }
func (l *ZapLogger) Error(msg string, args ...interface{}) { l.z.Error(msg, l.fields(args)...) }
