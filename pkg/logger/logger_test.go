package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewTo(&buf, "prod")
	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Info().Msg("shown")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["message"])
	assert.Equal(t, "prod", line["env"])
	assert.Contains(t, line, "time")

	buf.Reset()
	dev := NewTo(&buf, "dev")
	dev.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}
