package papi_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onefs-tools/gopapi/pkg/papi"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "papi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestConfigValidateDefaults(t *testing.T) {
	cfg := &papi.Config{Host: "10.0.0.1", Username: "root", Password: "a"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, papi.DefaultPort, cfg.Port)
	assert.Equal(t, papi.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, papi.ServicePlatform, cfg.Service)
	assert.False(t, cfg.Secure)
}

func TestConfigValidateRejectsUnknownService(t *testing.T) {
	cfg := &papi.Config{Host: "10.0.0.1", Username: "root", Password: "a", Service: "object"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object")
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
host: 10.0.0.1
username: root
password: a
port: 8443
service: namespace
timeout: 30s
secure: true
`)
	cfg, err := papi.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.Host)
	assert.Equal(t, 8443, cfg.Port)
	assert.Equal(t, papi.ServiceNamespace, cfg.Service)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.Secure)
}

func TestLoadConfigPasswordFromEnv(t *testing.T) {
	t.Setenv("PAPI_PASSWORD", "hunter2")
	path := writeConfigFile(t, `
host: 10.0.0.1
username: root
`)
	cfg, err := papi.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Password)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := papi.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
	t.Run("bad yaml", func(t *testing.T) {
		_, err := papi.LoadConfig(writeConfigFile(t, "host: [broken"))
		assert.Error(t, err)
	})
	t.Run("bad timeout", func(t *testing.T) {
		_, err := papi.LoadConfig(writeConfigFile(t, "host: h\nusername: u\npassword: p\ntimeout: soon\n"))
		assert.Error(t, err)
	})
	t.Run("missing host", func(t *testing.T) {
		_, err := papi.LoadConfig(writeConfigFile(t, "username: u\npassword: p\n"))
		assert.Error(t, err)
	})
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PAPI_HOST", "10.0.0.2")
	t.Setenv("PAPI_USERNAME", "admin")
	t.Setenv("PAPI_PASSWORD", "a")
	t.Setenv("PAPI_PORT", "8443")
	t.Setenv("PAPI_SERVICE", "namespace")
	t.Setenv("PAPI_TIMEOUT", "5s")
	t.Setenv("PAPI_SECURE", "true")

	cfg, err := papi.ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", cfg.Host)
	assert.Equal(t, "admin", cfg.Username)
	assert.Equal(t, 8443, cfg.Port)
	assert.Equal(t, papi.ServiceNamespace, cfg.Service)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.Secure)
}

func TestConfigFromEnvBadValues(t *testing.T) {
	t.Setenv("PAPI_HOST", "10.0.0.2")
	t.Setenv("PAPI_USERNAME", "admin")
	t.Setenv("PAPI_PASSWORD", "a")

	t.Run("bad port", func(t *testing.T) {
		t.Setenv("PAPI_PORT", "eight")
		_, err := papi.ConfigFromEnv()
		assert.Error(t, err)
	})
	t.Run("bad secure", func(t *testing.T) {
		t.Setenv("PAPI_SECURE", "sometimes")
		_, err := papi.ConfigFromEnv()
		assert.Error(t, err)
	})
}
