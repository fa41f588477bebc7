package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

const (
	DefaultHeartbeatSeconds = 10
	MinHeartbeatSeconds     = 2
	MaxHeartbeatSeconds     = 3600
	DefaultMaxWorkers       = 32
	DefaultBackoffBase      = 5 * time.Second
	DefaultAPIRateLimit     = 600 // requests per minute per client
	DefaultAPIRateBurst     = 120
)

// Stream is one monitored feed as declared in the config file.
type Stream struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type Config struct {
	Addr             string        `mapstructure:"addr"`         // status API bind address
	LogDir           string        `mapstructure:"log_dir"`      // rotating log directory
	DatabaseURL      string        `mapstructure:"database_url"` // empty means in-memory sink
	HeartbeatSeconds int           `mapstructure:"heartbeat_seconds"`
	MaxWorkers       int           `mapstructure:"max_workers"` // per lane
	RTSPTimeout      time.Duration `mapstructure:"rtsp_timeout"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"` // first-failure backoff delay
	APIRateLimit     int           `mapstructure:"api_rate_limit"`
	APIRateBurst     int           `mapstructure:"api_rate_burst"`
	Streams          []Stream      `mapstructure:"streams"`
}

// Heartbeat is the target duration of one full probing cycle per lane.
func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetDefault("addr", "127.0.0.1:7000")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("heartbeat_seconds", DefaultHeartbeatSeconds)
	v.SetDefault("max_workers", DefaultMaxWorkers)
	v.SetDefault("rtsp_timeout", 3500*time.Millisecond)
	v.SetDefault("http_timeout", 3*time.Second)
	v.SetDefault("backoff_base", DefaultBackoffBase)
	v.SetDefault("api_rate_limit", DefaultAPIRateLimit)
	v.SetDefault("api_rate_burst", DefaultAPIRateBurst)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads and validates the config file at path. Out-of-range heartbeat
// and worker settings are clamped, not rejected.
func Load(path string) (*Config, error) {
	return load(newViper(path))
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.clamp()
	return &cfg, nil
}

func (c *Config) clamp() {
	if c.HeartbeatSeconds < MinHeartbeatSeconds {
		c.HeartbeatSeconds = MinHeartbeatSeconds
	}
	if c.HeartbeatSeconds > MaxHeartbeatSeconds {
		c.HeartbeatSeconds = MaxHeartbeatSeconds
	}
	if c.MaxWorkers < 1 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Streams,
			validation.By(validateStreams),
			validation.Each(validation.By(validateStream)),
		),
	)
}

func validateStreams(value interface{}) error {
	streams, ok := value.([]Stream)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a stream list")
	}
	seen := make(map[string]struct{}, len(streams))
	for _, s := range streams {
		if _, dup := seen[s.Name]; dup {
			return validation.NewError("validation_duplicate_name",
				fmt.Sprintf("duplicate stream name %q", s.Name))
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

func validateStream(value interface{}) error {
	s, ok := value.(Stream)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a Stream")
	}
	if strings.TrimSpace(s.Name) == "" {
		return validation.NewError("validation_empty_name", "stream name cannot be empty")
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "stream url must be a valid URL")
	}
	switch strings.ToLower(u.Scheme) {
	case "rtsp", "rtsps", "http", "https":
	default:
		return validation.NewError("validation_invalid_scheme",
			"stream url must use rtsp, rtsps, http or https")
	}
	if u.Host == "" {
		return validation.NewError("validation_missing_host", "stream url must have a host")
	}
	return nil
}
