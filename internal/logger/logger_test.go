package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_Level(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewWithWriter("debug", &bytes.Buffer{}).GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewWithWriter("loud", &bytes.Buffer{}).GetLevel())
}

func TestLogError_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logg := NewWithWriter("info", &buf)

	LogError(logg, "reconciliation", "RunAutomaticMatching", "loading sales", map[string]uint{"terminal_id": 7}, errors.New("boom"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["msg"])
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "reconciliation", entry["module"])
	assert.Equal(t, "RunAutomaticMatching", entry["funcName"])
	assert.Equal(t, "loading sales", entry["context"])
	assert.NotNil(t, entry["data"])
}

func TestLogError_OmitsNilData(t *testing.T) {
	var buf bytes.Buffer
	logg := NewWithWriter("info", &buf)

	LogError(logg, "scheduler", "RunOnce", "listing terminals", nil, errors.New("db down"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, hasData := entry["data"]
	assert.False(t, hasData)
}
