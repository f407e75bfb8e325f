package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput(&buf, "debug", "json")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("board_id", "A").Info("card added")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "card added", entry["msg"])
	assert.Equal(t, "A", entry["board_id"])
}

func TestNewWithOutput_Rejects(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWithOutput(&buf, "loud", "json")
	assert.Error(t, err)

	_, err = NewWithOutput(&buf, "info", "xml")
	assert.Error(t, err)
}
