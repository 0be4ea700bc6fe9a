package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int `koanf:"port"`
		// Requests per second allowed per client IP on the public
		// loader endpoint.
		LoaderRateLimit float64 `koanf:"loader_rate_limit"`
		LoaderRateBurst int     `koanf:"loader_rate_burst"`
	} `koanf:"server"`

	Auth struct {
		// HMAC secret for admin-panel JWTs.
		JWTSecret       string `koanf:"jwt_secret"`
		TokenTTLMinutes int    `koanf:"token_ttl_minutes"`
	} `koanf:"auth"`

	Delivery struct {
		Watermark string `koanf:"watermark"`
	} `koanf:"delivery"`

	Retention struct {
		// Execution logs older than this many days are pruned by the
		// background job. Zero disables pruning.
		LogDays int `koanf:"log_days"`
	} `koanf:"retention"`

	Logging struct {
		Level string `koanf:"level"`
		File  string `koanf:"file"`
	} `koanf:"logging"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"server.port":              8430,
		"server.loader_rate_limit": 5.0,
		"server.loader_rate_burst": 10,
		"auth.token_ttl_minutes":   720,
		"retention.log_days":       90,
		"logging.level":            "info",
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try to load from default locations - prioritize sgdata directory for containerized environments
		defaultPaths := []string{"./sgdata/scriptguard.toml", "./scriptguard.toml", "$HOME/.scriptguard.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix SCRIPTGUARD_
	k.Load(env.Provider("SCRIPTGUARD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SCRIPTGUARD_")), "_", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	// Create sample configuration
	sampleConfig := `# ScriptGuard Configuration

[server]
port = 8430
loader_rate_limit = 5.0
loader_rate_burst = 10

[auth]
jwt_secret = "change-me"
token_ttl_minutes = 720

[delivery]
watermark = "-- packaged with scriptguard"

[retention]
log_days = 90

[logging]
level = "info"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", config.Server.Port)
	}

	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required (set SCRIPTGUARD_AUTH_JWT_SECRET or the config file)")
	}

	if config.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth token_ttl_minutes must be positive")
	}

	if config.Retention.LogDays < 0 {
		return fmt.Errorf("retention log_days cannot be negative")
	}

	return nil
}
