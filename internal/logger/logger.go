package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

var log *slog.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Init configures the process logger. Development gets colorized tint
// output, everything else gets JSON lines.
func Init(env string) {
	if env == "production" {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		log = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	log.Info("logger initialized")
}

func Info(msg string, fields map[string]any) {
	log.Info(msg, args(fields)...)
}

func Warn(msg string, fields map[string]any) {
	log.Warn(msg, args(fields)...)
}

func Error(msg string, fields map[string]any) {
	log.Error(msg, args(fields)...)
}

func Fatal(msg string, fields map[string]any) {
	log.Error(msg, args(fields)...)
	os.Exit(1)
}

func args(fields map[string]any) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}
