package commands_test

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/blog-client/cmd/blog/commands"
	"github.com/fivetwenty-io/blog-client/internal/constants"
)

func TestConfigSetAndShow(t *testing.T) {
	configFile := tempConfig(t)

	res := execute(t, configFile, "config", "set", "api", "http://blog.example.com/")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Set api to http://blog.example.com/")

	res = execute(t, configFile, "config", "set", "token", "secret")
	require.NoError(t, res.err)
	assert.NotContains(t, res.stdout, "secret")

	res = execute(t, configFile, "config", "set", "output", "json")
	require.NoError(t, res.err)

	data, err := os.ReadFile(configFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "api: http://blog.example.com/")

	res = execute(t, configFile, "config", "show")
	require.NoError(t, res.err)

	var shown commands.Config
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &shown))
	assert.Equal(t, "http://blog.example.com/", shown.API)
	assert.Equal(t, "***", shown.Token)
	assert.Equal(t, constants.FormatJSON, shown.Output)
}

func TestConfigFlagsOverrideFile(t *testing.T) {
	configFile := tempConfig(t)

	res := execute(t, configFile, "config", "set", "api", "http://from-file/")
	require.NoError(t, res.err)

	res = execute(t, configFile, "config", "show", "--api", "http://from-flag/", "--output", "json")
	require.NoError(t, res.err)

	var shown commands.Config
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &shown))
	assert.Equal(t, "http://from-flag/", shown.API)
}

func TestConfigSetErrors(t *testing.T) {
	res := execute(t, tempConfig(t), "config", "set", "colour", "blue")
	require.ErrorIs(t, res.err, constants.ErrUnknownConfigKey)

	res = execute(t, tempConfig(t), "config", "set", "output", "xml")
	require.ErrorIs(t, res.err, constants.ErrUnsupportedFormat)

	res = execute(t, tempConfig(t), "config", "set", "verbose", "maybe")
	require.Error(t, res.err)
}
