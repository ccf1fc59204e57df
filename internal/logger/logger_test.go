package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reset() {
	SetVerbose(false)
	SetOutput(os.Stderr)
}

func TestDebugSilentByDefault(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	Debug("hidden %d", 1)
	Info("hidden")
	Warn("hidden")

	assert.Empty(t, buf.String())
}

func TestVerboseEnablesLevels(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("chunks=%d", 42)
	Info("trained")
	Warn("skipping filing")
	Section("Index Build")

	out := buf.String()
	assert.Contains(t, out, "[DEBUG] chunks=42")
	assert.Contains(t, out, "[INFO] trained")
	assert.Contains(t, out, "[WARN] skipping filing")
	assert.Contains(t, out, "=== Index Build ===")
}

func TestErrorAlwaysPrinted(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Error("artifact mismatch: %s", "idmap.json")

	assert.Contains(t, buf.String(), "[ERROR] artifact mismatch: idmap.json")
}

func TestIsVerbose(t *testing.T) {
	defer reset()

	SetVerbose(true)
	assert.True(t, IsVerbose())
	SetVerbose(false)
	assert.False(t, IsVerbose())
}
