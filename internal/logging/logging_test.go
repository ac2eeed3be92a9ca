package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("stage update failed", "project_id", "p-1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"stage update failed"`)
	assert.Contains(t, out, `"project_id":"p-1"`)
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "text").With("component", "stages")

	logger.Debug("validated")

	assert.Contains(t, buf.String(), "component=stages")
}
