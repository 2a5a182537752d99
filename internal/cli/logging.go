package cli

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// initLogging configures the global zerolog logger from CTRCIA_LOG
// ("debug", "info", "warn", "error"; default "info"), writing
// human-readable output to stderr.
func initLogging() {
	level := zerolog.InfoLevel
	if v := strings.ToLower(os.Getenv("CTRCIA_LOG")); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			level = parsed
		}
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
