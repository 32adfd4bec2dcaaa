package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger("development"))
	assert.NotNil(t, GetLogger())

	require.NoError(t, InitLogger("production"))
	assert.NotNil(t, GetLogger())
	SyncLogger()
}

func TestGetLoggerWithoutInit(t *testing.T) {
	prev := logger
	logger = nil
	t.Cleanup(func() { logger = prev })

	assert.NotNil(t, GetLogger())
}
