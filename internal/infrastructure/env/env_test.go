package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inspector.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, "CDP_HOST: chrome.internal\nCDP_PORT: 9333\nLOG_LEVEL:\n")

	values, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "chrome.internal", values["CDP_HOST"])
	assert.Equal(t, "9333", values["CDP_PORT"])
	_, ok := values["LOG_LEVEL"]
	assert.False(t, ok)
}

func TestLoadFile_Invalid(t *testing.T) {
	path := writeConfig(t, "- not\n- a mapping\n")

	_, err := LoadFile(path)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvService_EnvOverridesFile(t *testing.T) {
	svc := &EnvService{file: map[string]string{
		"CDP_HOST": "from-file",
		"CDP_PORT": "9333",
	}}
	t.Setenv("CDP_HOST", "from-env")

	assert.Equal(t, "from-env", svc.Get("CDP_HOST"))
	assert.Equal(t, 9333, svc.GetInt("CDP_PORT", 9222))
	assert.Equal(t, "fallback", svc.GetWithDefault("HTTP_ADDR", "fallback"))
}

func TestEnvService_TypedDefaults(t *testing.T) {
	svc := &EnvService{file: map[string]string{}}
	t.Setenv("INSPECTOR_FLAG", "not-a-bool")
	t.Setenv("INSPECTOR_NUM", "abc")

	assert.True(t, svc.GetBool("INSPECTOR_FLAG", true))
	assert.Equal(t, 7, svc.GetInt("INSPECTOR_NUM", 7))
	assert.False(t, svc.GetBool("INSPECTOR_UNSET", false))
}
