package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Schema Tests ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30000, cfg.HeartIntervalMs)
	assert.Equal(t, FormatArray, cfg.MessagePostFormat)
	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.Equal(t, 3001, cfg.WS.Port)
	assert.Equal(t, 5000, cfg.Identity.Capacity)
	assert.Equal(t, 256, cfg.Network.QueueSize)
	assert.False(t, cfg.ReportSelfMessage)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
token: s3cret
report_self_message: true
message_post_format: string
http:
  enable: true
  port: 5700
  enable_post: true
  post_urls: ["http://127.0.0.1:8080/onebot"]
reverse_ws:
  enable: true
  urls: ["ws://127.0.0.1:8081/ws"]
identity:
  capacity: 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Token)
	assert.True(t, cfg.ReportSelfMessage)
	assert.Equal(t, FormatString, cfg.MessagePostFormat)
	assert.True(t, cfg.HTTP.Enable)
	assert.Equal(t, 5700, cfg.HTTP.Port)
	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host, "unset fields keep defaults")
	assert.Equal(t, []string{"http://127.0.0.1:8080/onebot"}, cfg.HTTP.PostURLs)
	assert.Equal(t, []string{"ws://127.0.0.1:8081/ws"}, cfg.ReverseWS.URLs)
	assert.Equal(t, 5000, cfg.ReverseWS.ReconnectIntervalMs)
	assert.Equal(t, 100, cfg.Identity.Capacity)
}

func TestLoad_JSONIsAccepted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token":"abc","ws":{"enable":true,"port":6700}}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Token)
	assert.True(t, cfg.WS.Enable)
	assert.Equal(t, 6700, cfg.WS.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ONEBOT_TOKEN", "from-env")
	t.Setenv("ONEBOT_HTTP_POST_URLS", "http://a,http://b")
	t.Setenv("ONEBOT_IDENTITY_CAPACITY", "42")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.HTTP.PostURLs)
	assert.Equal(t, 42, cfg.Identity.Capacity)
}

func TestLoad_InvalidFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("message_post_format: xml\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_BrokenYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Token = "tok"
	cfg.HTTP.PostURLs = []string{"http://x"}

	require.NoError(t, Save(cfg, path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
