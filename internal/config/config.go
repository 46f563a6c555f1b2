package config

import (
	"fmt"
	"os"
	"time"

	"flip7-server/internal/util"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config provides configuration for the Flip 7 server
type Config struct {
	loaded bool
	Addr   string `yaml:"addr" envconfig:"addr"`
	Log    struct {
		Level             string `yaml:"level" envconfig:"level"`
		Format            string `yaml:"format" envconfig:"format"`
		DisableAccessLogs bool   `yaml:"disableAccessLogs" envconfig:"disable_access_logs"`
	} `yaml:"log"`
	Game struct {
		TargetScore int `yaml:"targetScore" envconfig:"target_score"`
		MaxPlayers  int `yaml:"maxPlayers" envconfig:"max_players"`
		QueueSize   int `yaml:"queueSize" envconfig:"queue_size"`
		// IdleTimeout and ReapInterval are in seconds
		IdleTimeout  int `yaml:"idleTimeout" envconfig:"idle_timeout"`
		ReapInterval int `yaml:"reapInterval" envconfig:"reap_interval"`
	} `yaml:"game"`
	NATS struct {
		URL           string `yaml:"url" envconfig:"url"`
		SubjectPrefix string `yaml:"subjectPrefix" envconfig:"subject_prefix"`
	} `yaml:"nats"`
	Debug struct {
		Statsviz bool `yaml:"statsviz" envconfig:"statsviz"`
	} `yaml:"debug"`
}

// IdleTimeout returns game.idleTimeout as a duration
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.Game.IdleTimeout) * time.Second
}

// ReapInterval returns game.reapInterval as a duration
func (c Config) ReapInterval() time.Duration {
	return time.Duration(c.Game.ReapInterval) * time.Second
}

var config Config

// DefaultConfig returns the configuration used when nothing overrides it
func DefaultConfig() Config {
	cfg := Config{
		Addr: ":5000",
	}

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Game.TargetScore = 200
	cfg.Game.MaxPlayers = 8
	cfg.Game.QueueSize = 64
	cfg.Game.IdleTimeout = 1800
	cfg.Game.ReapInterval = 60
	cfg.NATS.SubjectPrefix = "flip7.game"

	return cfg
}

// Instance returns a singleton instance
// If the config hasn't been loaded, it will be loaded
func Instance() Config {
	if !config.loaded {
		if err := Load(); err != nil {
			panic(err)
		}
	}

	return config
}

// Load will load the configuration
// The YAML file is optional; environment variables prefixed with FLIP7_ override it.
func Load() error {
	cfg := DefaultConfig()

	configFile := util.Getenv("FLIP7_CONFIG_FILE", "config.yaml")
	file, err := os.Open(configFile)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
			return fmt.Errorf("could not decode %s: %w", configFile, err)
		}
	case !os.IsNotExist(err):
		return err
	}

	if err := envconfig.Process("flip7", &cfg); err != nil {
		return err
	}

	cfg.loaded = true
	config = cfg
	return nil
}
