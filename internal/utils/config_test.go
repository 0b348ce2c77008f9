package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFrom_Valid(t *testing.T) {
	t.Setenv(SofficeEnvVar, "")
	p := writeConfig(t, `server:
  host: "127.0.0.1"
  port: ":8080"
limits:
  max_upload_bytes: 1024
  max_pdf_bytes: 2048
rate_limiter:
  interval: 1h
  user_limit: 20
converter:
  strategy: direct
  soffice_path: /opt/libreoffice/program/soffice
  timeout: 30s
  search_paths: ["/a/soffice", "/b/soffice"]
`)
	cfg := LoadFrom(p)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 1024, cfg.Limits.MaxUploadBytes)
	assert.Equal(t, time.Hour, cfg.RateLimiter.Interval)
	assert.Equal(t, "direct", cfg.Converter.Strategy)
	assert.Equal(t, "/opt/libreoffice/program/soffice", cfg.Converter.SofficePath)
	assert.Equal(t, 30*time.Second, cfg.Converter.Timeout)
	assert.Equal(t, []string{"/a/soffice", "/b/soffice"}, cfg.Converter.SearchPaths)
	// untouched keys keep their defaults
	assert.Equal(t, "pdf", cfg.Converter.Format)
	assert.Equal(t, 3, cfg.Converter.ReadRetries)
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(SofficeEnvVar, "")
	cfg := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	def := DefaultConfig()
	assert.Equal(t, def.Server.Port, cfg.Server.Port)
	assert.Equal(t, "auto", cfg.Converter.Strategy)
	assert.Equal(t, 2*time.Minute, cfg.Converter.Timeout)
}

func TestLoadFrom_EnvOverridesSofficePath(t *testing.T) {
	t.Setenv(SofficeEnvVar, `C:\Program Files\LibreOffice\program\soffice.exe`)
	p := writeConfig(t, "converter:\n  soffice_path: /usr/bin/soffice\n")
	cfg := LoadFrom(p)
	assert.Equal(t, `C:\Program Files\LibreOffice\program\soffice.exe`, cfg.Converter.SofficePath)
}

func TestLoadFrom_PanicsOnInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{name: "malformed yaml", yml: "server: [unclosed\n"},
		{name: "unknown strategy", yml: "converter:\n  strategy: magic\n"},
		{name: "negative timeout", yml: "converter:\n  timeout: -1s\n"},
		{name: "zero upload limit", yml: "limits:\n  max_upload_bytes: 0\n"},
		{name: "negative pdf limit", yml: "limits:\n  max_pdf_bytes: -1\n"},
		{name: "zero rate interval", yml: "rate_limiter:\n  interval: 0s\n"},
		{name: "negative user limit", yml: "rate_limiter:\n  user_limit: -1\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := writeConfig(t, tc.yml)
			assert.Panics(t, func() { _ = LoadFrom(p) })
		})
	}
}

func TestLoadConfig_UsesConfigPathEnv(t *testing.T) {
	t.Setenv(SofficeEnvVar, "")
	p := writeConfig(t, "server:\n  port: \":9999\"\n")
	t.Setenv("CONFIG_PATH", p)

	cfg := LoadConfig()
	assert.Equal(t, ":9999", cfg.Server.Port)
	assert.Equal(t, ":9999", GetConfig().Server.Port)
}

func TestPostgresConfigEnabled(t *testing.T) {
	assert.False(t, PostgresConfig{}.Enabled())
	assert.True(t, PostgresConfig{Host: "db"}.Enabled())
}
