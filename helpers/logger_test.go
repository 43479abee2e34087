package helpers

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "errors.log")

	logger := NewLogger(tmpFile)

	logger.LogError("page 4", errors.New("missing table header"))
	logger.LogError("page 9", errors.New("retry attempts exhausted"))

	data, err := os.ReadFile(tmpFile)
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[page 4] missing table header")
	assert.Contains(t, lines[1], "[page 9] retry attempts exhausted")

	// Info messages go to the structured logger, not the file
	logger.LogInfo("Test info message: %s", "hello")
	data, err = os.ReadFile(tmpFile)
	assert.NoError(t, err)
	assert.NotContains(t, string(data), "hello")
}
