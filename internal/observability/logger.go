package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the process logger and installs it as the zerolog
// global. format "json" writes one JSON object per line; anything else
// uses the human readable console writer.
func InitLogger(app, format, level string) zerolog.Logger {
	var output io.Writer = os.Stdout
	if strings.ToLower(strings.TrimSpace(format)) != "json" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	logger := zerolog.New(output).Level(parsed).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
