package config

import (
	"regexp"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	General  GeneralConfig  `mapstructure:"general"`
	Advanced AdvancedConfig `mapstructure:"advanced"`
}

type ServerConfig struct {
	IP                  string `mapstructure:"ip"`
	Port                int    `mapstructure:"port"`
	ReconnectionAttempt int    `mapstructure:"reconnection_attempt"`
}

type GeneralConfig struct {
	Language string `mapstructure:"language"`
}

type AdvancedConfig struct {
	LogLevel   string `mapstructure:"log_level"`
	WorkerPool int    `mapstructure:"worker_pool"`
	CachePath  string `mapstructure:"cache_path"`
	RecordPath string `mapstructure:"record_path"`
}

var ipv4Pattern = regexp.MustCompile(`^((25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.ip", "127.0.0.1")
	v.SetDefault("server.port", 7777)
	v.SetDefault("server.reconnection_attempt", 5)
	v.SetDefault("general.language", "en-us")
	v.SetDefault("advanced.log_level", "info")
	v.SetDefault("advanced.worker_pool", 2)
	v.SetDefault("advanced.cache_path", "cache.db")
	v.SetDefault("advanced.record_path", "record.db")
}

// Load reads config.json from path, filling in defaults for anything missing.
// A missing file is not an error; defaults are used wholesale.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(path)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.check()
	return cfg, nil
}

// check replaces out-of-range values with defaults rather than failing; a bad
// config file must never keep the client from starting.
func (c *Config) check() {
	if !ipv4Pattern.MatchString(c.Server.IP) {
		c.Server.IP = "127.0.0.1"
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		c.Server.Port = 7777
	}
	if c.Server.ReconnectionAttempt < 1 {
		c.Server.ReconnectionAttempt = 5
	}
	if c.Advanced.WorkerPool < 1 || c.Advanced.WorkerPool > 16 {
		c.Advanced.WorkerPool = 2
	}
	if c.Advanced.CachePath == "" {
		c.Advanced.CachePath = "cache.db"
	}
	if c.Advanced.RecordPath == "" {
		c.Advanced.RecordPath = "record.db"
	}
}
