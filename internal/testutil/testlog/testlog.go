package testlog

import (
	"testing"

	"github.com/danmuck/variantctl/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("start")
}

// Logger returns the test-configured global logger.
func Logger() *zerolog.Logger {
	logging.ConfigureTests()
	return logging.Logger()
}
