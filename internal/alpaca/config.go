package alpaca

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default network settings. 11111 is the conventional Alpaca API port;
// 32227 is fixed by the Alpaca discovery protocol.
const (
	DefaultListenAddress = ":11111"
	DefaultDiscoveryPort = 32227
	DefaultTelescopePort = 80
)

// Config holds the server configuration.
type Config struct {
	// ListenAddress is the address the HTTP API binds to, e.g. ":11111".
	ListenAddress string `mapstructure:"listen_address"`

	// DiscoveryPort is the UDP port used for Alpaca discovery broadcasts
	// and responses.
	DiscoveryPort int `mapstructure:"discovery_port"`

	// TelescopeHost and TelescopePort locate the Origin telescope on the
	// local network. The WebSocket session and image downloads both go
	// here.
	TelescopeHost string `mapstructure:"telescope_host"`
	TelescopePort int    `mapstructure:"telescope_port"`

	// SiteLatitude and SiteLongitude, in degrees, seed the telescope's
	// alignment routine and are reported by the site endpoints.
	SiteLatitude  float64 `mapstructure:"site_latitude"`
	SiteLongitude float64 `mapstructure:"site_longitude"`

	// LogLevel selects zap's level: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	// WireLog optionally names a file that records raw WebSocket traffic.
	WireLog string `mapstructure:"wire_log"`

	// MQTTBroker optionally enables the status bridge, e.g.
	// "tcp://localhost:1883". Empty disables MQTT entirely.
	MQTTBroker   string `mapstructure:"mqtt_broker"`
	MQTTClientID string `mapstructure:"mqtt_client_id"`
	MQTTUsername string `mapstructure:"mqtt_username"`
	MQTTPassword string `mapstructure:"mqtt_password"`

	// ReadTimeout and IdleTimeout bound HTTP connections. There is no
	// write timeout: startexposure holds its connection open for the full
	// exposure, which can run to an hour.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// Validate checks the configuration and fills in defaults for unset fields.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if c.DiscoveryPort == 0 {
		c.DiscoveryPort = DefaultDiscoveryPort
	}
	if c.DiscoveryPort < 1 || c.DiscoveryPort > 65535 {
		return fmt.Errorf("discovery port %d out of range", c.DiscoveryPort)
	}
	if c.TelescopeHost == "" {
		return fmt.Errorf("telescope host must be set")
	}
	if c.TelescopePort == 0 {
		c.TelescopePort = DefaultTelescopePort
	}
	if c.TelescopePort < 1 || c.TelescopePort > 65535 {
		return fmt.Errorf("telescope port %d out of range", c.TelescopePort)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
	return nil
}

// LoadConfig reads configuration from an optional YAML file and ORIGIN_*
// environment variables. Path may be empty, in which case only defaults and
// the environment apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_address", DefaultListenAddress)
	v.SetDefault("discovery_port", DefaultDiscoveryPort)
	v.SetDefault("telescope_host", "192.168.1.100")
	v.SetDefault("telescope_port", DefaultTelescopePort)
	v.SetDefault("site_latitude", 52.2)
	v.SetDefault("site_longitude", 0.0)
	v.SetDefault("log_level", "info")
	v.SetDefault("mqtt_client_id", "origin-alpaca-gateway")

	v.SetEnvPrefix("ORIGIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
