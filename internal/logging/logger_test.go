package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/xelth-com/bizsync/internal/config"
)

func TestNewWriter(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	logger := NewWriter(buff, zerolog.InfoLevel)

	logger.Debug().Msg("hidden")
	require.Equal(t, 0, buff.Len())

	logger.Info().Str("entity", "customers").Msg("pushed")
	require.Contains(t, buff.String(), `"entity":"customers"`)
	require.Contains(t, buff.String(), "pushed")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	require.Equal(t, zerolog.InfoLevel, level)

	level, err = ParseLevel(" WARN ")
	require.NoError(t, err)
	require.Equal(t, zerolog.WarnLevel, level)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")
	logger, closer, err := New(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Debug().Msg("written to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "written to file")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "nope"})
	require.Error(t, err)
}
