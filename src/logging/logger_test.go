package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")
	l := logrus.New()

	closer := Configure(l, Config{Level: "warn", Format: "json", Output: OutputFile, File: path, MaxSizeMB: 1})
	l.Info("dropped")
	l.WithField("strategy_id", 3).Warn("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"msg":"kept"`)
	assert.Contains(t, string(data), `"strategy_id":3`)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}

func TestConfigureConsoleDefaults(t *testing.T) {
	l := logrus.New()
	closer := Configure(l, Config{Level: "nonsense", Output: OutputConsole})
	assert.NoError(t, closer.Close())

	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	assert.Equal(t, os.Stdout, l.Out)
	_, ok := l.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}
