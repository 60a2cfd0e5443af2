// Package config handles configuration loading, saving, and schema definition.
package config

// Config is the top-level onebot-bridge configuration.
// Uses snake_case yaml tags to match the OneBot 11 config file conventions.
type Config struct {
	Token             string `yaml:"token"               env:"ONEBOT_TOKEN"`
	HeartIntervalMs   int    `yaml:"heart_interval_ms"   env:"ONEBOT_HEART_INTERVAL_MS"`
	Debug             bool   `yaml:"debug"               env:"ONEBOT_DEBUG"`
	ReportSelfMessage bool   `yaml:"report_self_message" env:"ONEBOT_REPORT_SELF_MESSAGE"`
	MessagePostFormat string `yaml:"message_post_format" env:"ONEBOT_MESSAGE_POST_FORMAT"` // "array" or "string"

	HTTP      HTTPConfig      `yaml:"http"`
	WS        WSConfig        `yaml:"ws"`
	ReverseWS ReverseWSConfig `yaml:"reverse_ws"`
	Network   NetworkConfig   `yaml:"network"`
	Identity  IdentityConfig  `yaml:"identity"`
	Log       LogConfig       `yaml:"log"`
	Platform  PlatformConfig  `yaml:"platform"`
}

// HTTPConfig covers both the passive HTTP API server and active HTTP post.
type HTTPConfig struct {
	Enable     bool     `yaml:"enable"      env:"ONEBOT_HTTP_ENABLE"`
	Host       string   `yaml:"host"        env:"ONEBOT_HTTP_HOST"`
	Port       int      `yaml:"port"        env:"ONEBOT_HTTP_PORT"`
	EnablePost bool     `yaml:"enable_post" env:"ONEBOT_HTTP_ENABLE_POST"`
	PostURLs   []string `yaml:"post_urls,omitempty"   env:"ONEBOT_HTTP_POST_URLS" envSeparator:","`
	Secret     string   `yaml:"secret"      env:"ONEBOT_HTTP_SECRET"`
}

// WSConfig holds the passive (forward) WebSocket server settings.
type WSConfig struct {
	Enable bool   `yaml:"enable" env:"ONEBOT_WS_ENABLE"`
	Host   string `yaml:"host"   env:"ONEBOT_WS_HOST"`
	Port   int    `yaml:"port"   env:"ONEBOT_WS_PORT"`
}

// ReverseWSConfig holds the active (reverse) WebSocket client settings.
type ReverseWSConfig struct {
	Enable              bool     `yaml:"enable"                env:"ONEBOT_REVERSE_WS_ENABLE"`
	URLs                []string `yaml:"urls,omitempty"                  env:"ONEBOT_REVERSE_WS_URLS" envSeparator:","`
	ReconnectIntervalMs int      `yaml:"reconnect_interval_ms" env:"ONEBOT_REVERSE_WS_RECONNECT_INTERVAL_MS"`
}

// NetworkConfig tunes the adapter fan-out.
type NetworkConfig struct {
	QueueSize int `yaml:"queue_size" env:"ONEBOT_NETWORK_QUEUE_SIZE"`
}

// IdentityConfig bounds the message identity registry.
type IdentityConfig struct {
	Capacity int         `yaml:"capacity" env:"ONEBOT_IDENTITY_CAPACITY"`
	Redis    RedisConfig `yaml:"redis"`
}

// RedisConfig enables the shared identity registry when URL is set.
type RedisConfig struct {
	URL      string `yaml:"url"       env:"ONEBOT_REDIS_URL"`
	Password string `yaml:"password"  env:"ONEBOT_REDIS_PASSWORD"`
	DB       int    `yaml:"db"        env:"ONEBOT_REDIS_DB"`
	TTLHours int    `yaml:"ttl_hours" env:"ONEBOT_REDIS_TTL_HOURS"`
}

// LogConfig configures the zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"  env:"ONEBOT_LOG_LEVEL"`
	Format string `yaml:"format" env:"ONEBOT_LOG_FORMAT"` // "console" or "json"
}

// PlatformConfig points the sandbox platform at its fixture and event feed.
type PlatformConfig struct {
	Fixture string `yaml:"fixture" env:"ONEBOT_PLATFORM_FIXTURE"`
	Feed    string `yaml:"feed"    env:"ONEBOT_PLATFORM_FEED"` // "-" reads stdin
}

// Message post formats.
const (
	FormatArray  = "array"
	FormatString = "string"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HeartIntervalMs:   30000,
		MessagePostFormat: FormatArray,
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		WS: WSConfig{
			Host: "0.0.0.0",
			Port: 3001,
		},
		ReverseWS: ReverseWSConfig{
			ReconnectIntervalMs: 5000,
		},
		Network: NetworkConfig{
			QueueSize: 256,
		},
		Identity: IdentityConfig{
			Capacity: 5000,
			Redis: RedisConfig{
				TTLHours: 72,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
