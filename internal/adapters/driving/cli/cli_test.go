package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3")

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Equal(t, "filingrag version 1.2.3\n", out.String())
}

func TestSnippetTruncatesOnRuneBoundary(t *testing.T) {
	assert.Equal(t, "short", snippet("short", 10))

	long := strings.Repeat("é", 20)
	got := snippet(long, 5)
	require.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("é", 5)+"...", got)
}
