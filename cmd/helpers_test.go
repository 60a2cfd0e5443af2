package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dayuer/onebot-bridge/internal/config"
	"github.com/dayuer/onebot-bridge/internal/identity"
	"github.com/dayuer/onebot-bridge/internal/network"
)

func adapterNames(adapters []network.Adapter) []string {
	names := make([]string, len(adapters))
	for i, a := range adapters {
		names[i] = a.Name()
	}
	return names
}

func TestMakeAdapters(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Empty(t, makeAdapters(cfg, network.Common{}))

	cfg.HTTP.Enable = true
	cfg.HTTP.EnablePost = true
	cfg.HTTP.PostURLs = []string{"http://a/post", "http://b/post"}
	cfg.WS.Enable = true
	cfg.ReverseWS.Enable = true
	cfg.ReverseWS.URLs = []string{"ws://c/ws"}

	assert.Equal(t, []string{
		"http_server:3000",
		"http_post:http://a/post",
		"http_post:http://b/post",
		"ws_server:3001",
		"ws_reverse:ws://c/ws",
	}, adapterNames(makeAdapters(cfg, network.Common{})))
}

func TestMakeAdapters_PostURLsNeedEnablePost(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.PostURLs = []string{"http://a/post"}
	assert.Empty(t, makeAdapters(cfg, network.Common{}))
}

func TestMakeRegistry_MemoryWithoutRedis(t *testing.T) {
	cfg := config.DefaultConfig().Identity
	reg := makeRegistry(context.Background(), cfg, zerolog.Nop())
	_, ok := reg.(*identity.MemoryRegistry)
	assert.True(t, ok)
}

func TestMakeRegistry_FallsBackWhenRedisUnreachable(t *testing.T) {
	cfg := config.DefaultConfig().Identity
	cfg.Redis.URL = "redis://127.0.0.1:1/0"
	reg := makeRegistry(context.Background(), cfg, zerolog.Nop())
	_, ok := reg.(*identity.MemoryRegistry)
	assert.True(t, ok)
}

func TestLoadPlatform(t *testing.T) {
	_, err := loadPlatform(config.PlatformConfig{})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "fixture.yaml")
	data, err := yaml.Marshal(sampleFixture())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	api, err := loadPlatform(config.PlatformConfig{Fixture: path})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), api.Self().Uin)

	friends, err := api.Friends(context.Background())
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, int64(10001), friends[0].Uin)
}

func TestLoadPlatform_RequiresSelf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte("friends: []\n"), 0644))
	_, err := loadPlatform(config.PlatformConfig{Fixture: path})
	assert.Error(t, err)
}

func TestOpenFeed(t *testing.T) {
	f, err := openFeed("-")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = openFeed(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}
