package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, Warn)

	l.Logf(Info, "dropped %d", 1)
	l.Logf(Warn, "kept %d", 2)
	l.Logf(Error, "kept %d", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[WARN] kept 2")
	assert.Contains(t, lines[1], "[ERROR] kept 3")
}

func TestDisabledLoggerIsSilent(t *testing.T) {
	l, err := New(Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, l.Enabled(Error))
	l.Logf(Error, "nothing")
	assert.NoError(t, l.Close())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, Debug, ParseLevel("DEBUG"))
	assert.Equal(t, Warn, ParseLevel("warning"))
	assert.Equal(t, Error, ParseLevel(" error "))
	assert.Equal(t, Info, ParseLevel("verbose"))
	assert.Equal(t, "INFO", Info.String())
}

func TestFileSinkAndGlobal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "flametrace.log")
	require.NoError(t, Init(Config{Enabled: true, Level: "debug", File: path}))
	t.Cleanup(func() { SetDefault(NewWriter(os.Stderr, Info)) })

	assert.True(t, IsEnabled(Debug))
	Debugf("trace %s indexed", "t-1")
	Warnf("bucket absorbed %d events", 42)
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "[DEBUG] trace t-1 indexed")
	assert.Contains(t, out, "[WARN] bucket absorbed 42 events")
}
