package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parcelscape.toml")
	doc := `
[window]
title = "Downtown"
width = 1920
height = 1080

[data]
base_url = "http://example.com"
bbox = [-114.2, 51.0, -114.0, 51.1]
limit = 500

[projects]
username = "ines"

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Downtown", cfg.Window.Title)
	assert.Equal(t, uint32(1920), cfg.Window.Width)
	assert.Equal(t, "http://example.com", cfg.Data.BaseURL)
	assert.Equal(t, [4]float64{-114.2, 51.0, -114.0, 51.1}, cfg.Data.BBox)
	assert.Equal(t, 500, cfg.Data.Limit)
	assert.Equal(t, "ines", cfg.Projects.Username)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Data.TimeoutSeconds, cfg.Data.TimeoutSeconds)
	assert.Equal(t, Default().Projects.Dir, cfg.Projects.Dir)
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"zero window":   "[window]\nwidth = 0\n",
		"bad limit":     "[data]\nlimit = -1\n",
		"inverted bbox": "[data]\nbbox = [-114.0, 51.0, -114.2, 51.1]\n",
		"not toml":      "window = {{{",
	}
	for name, doc := range cases {
		path := filepath.Join(dir, "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
		_, err := Load(path)
		assert.Error(t, err, name)
	}
}
