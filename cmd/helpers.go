package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dayuer/onebot-bridge/internal/config"
	"github.com/dayuer/onebot-bridge/internal/identity"
	"github.com/dayuer/onebot-bridge/internal/network"
	"github.com/dayuer/onebot-bridge/internal/platform"
)

// makeRegistry returns the Redis-backed registry when a Redis URL is
// configured and reachable, and the in-memory registry otherwise.
func makeRegistry(ctx context.Context, cfg config.IdentityConfig, log zerolog.Logger) identity.Registry {
	local := identity.NewMemoryRegistry(cfg.Capacity)
	if cfg.Redis.URL == "" {
		return local
	}
	client, err := identity.Connect(ctx, identity.RedisConfig{
		URL:      cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, using in-memory message ids")
		return local
	}
	ttl := time.Duration(cfg.Redis.TTLHours) * time.Hour
	log.Info().Str("url", cfg.Redis.URL).Dur("ttl", ttl).Msg("Sharing message ids through Redis")
	return identity.NewRedisRegistry(client, local, "onebot:msg:", ttl, log)
}

// makeAdapters builds one adapter per enabled transport endpoint.
func makeAdapters(cfg config.Config, common network.Common) []network.Adapter {
	var adapters []network.Adapter
	if cfg.HTTP.Enable {
		adapters = append(adapters, network.NewHTTPServer(cfg.HTTP.Host, cfg.HTTP.Port, common))
	}
	if cfg.HTTP.EnablePost {
		for _, url := range cfg.HTTP.PostURLs {
			adapters = append(adapters, network.NewHTTPPost(url, cfg.HTTP.Secret, common))
		}
	}
	if cfg.WS.Enable {
		adapters = append(adapters, network.NewWSServer(cfg.WS.Host, cfg.WS.Port, common))
	}
	if cfg.ReverseWS.Enable {
		for _, url := range cfg.ReverseWS.URLs {
			adapters = append(adapters, network.NewWSClient(url, cfg.ReverseWS.ReconnectIntervalMs, common))
		}
	}
	return adapters
}

// openFeed opens the platform event feed; "-" is stdin.
func openFeed(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening feed: %w", err)
	}
	return f, nil
}

func loadPlatform(cfg config.PlatformConfig) (*platform.MemoryAPI, error) {
	if cfg.Fixture == "" {
		return nil, fmt.Errorf("platform.fixture is not configured")
	}
	fixture, err := platform.LoadFixture(cfg.Fixture)
	if err != nil {
		return nil, err
	}
	if fixture.Self.Uin == 0 {
		return nil, fmt.Errorf("fixture %s: self.uin is required", cfg.Fixture)
	}
	return platform.NewMemoryAPI(fixture), nil
}
