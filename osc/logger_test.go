package osc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSLogger(t *testing.T) {
	logger := DefaultSLogger()
	assert.NotNil(t, logger)

	// discards output
	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
}

func TestServerLoggerDefault(t *testing.T) {
	assert.Equal(t, DefaultSLogger(), (&Server{}).logger())

	l := testLogger()
	assert.Same(t, l, (&Server{Logger: l}).logger())
}
