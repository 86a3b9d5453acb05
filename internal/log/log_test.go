package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/op/go-logging.v1"
)

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]logging.Level{
		"error":   logging.ERROR,
		"WARNING": logging.WARNING,
		"Notice":  logging.NOTICE,
		"info":    logging.INFO,
		"DEBUG":   logging.DEBUG,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err)
		require.Equal(t, want, got, name)
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestBackend_FileAndRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crypterd.log")

	b, err := New(path, "INFO", false)
	require.NoError(t, err)

	l := b.GetLogger("test")
	l.Info("first line")
	l.Debug("filtered out")

	rotated := filepath.Join(dir, "crypterd.log.1")
	require.NoError(t, os.Rename(path, rotated))
	require.NoError(t, b.Rotate())

	l.Notice("second line")
	b.GetGoLogger("http", "WARNING").Println("from net/http")

	old, err := os.ReadFile(rotated)
	require.NoError(t, err)
	require.Contains(t, string(old), "first line")
	require.NotContains(t, string(old), "filtered out")

	cur, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(cur), "second line")
	require.True(t, strings.Contains(string(cur), "WARN http: from net/http"))
}

func TestBackend_Disabled(t *testing.T) {
	b, err := New("", "DEBUG", true)
	require.NoError(t, err)
	b.GetLogger("quiet").Error("nobody hears this")
	require.NoError(t, b.Rotate())
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("", "LOUD", false)
	require.Error(t, err)
}
