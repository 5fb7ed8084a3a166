// Package config loads owlet configuration from file, environment, and
// defaults, and hot-reloads tunables when the config file changes.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the resolved process configuration.
type Config struct {
	// RemoteURL is the base URL of the remote relational data service.
	RemoteURL string

	// APIKey authenticates against the remote service.
	APIKey string

	// FeedURL is the WebSocket endpoint of the change feed. Empty disables
	// change-feed subscriptions.
	FeedURL string

	// DataDir holds the local SQLite snapshot store.
	DataDir string

	// UserID is the owning account id stamped onto session records.
	UserID string

	// ProbeInterval is how often the connectivity oracle probes.
	ProbeInterval time.Duration

	// RefreshInterval is how often the daemon re-pulls every store.
	RefreshInterval time.Duration

	// LogFile routes daemon logs to a rotating file. Empty logs to stderr.
	LogFile string

	// HubPort, when non-zero, makes the daemon serve its own change-feed
	// hub on this port.
	HubPort int
}

// DBPath returns the snapshot database location under DataDir.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "owlet.db")
}

// Loader reads configuration and watches it for changes.
type Loader struct {
	v      *viper.Viper
	logger *log.Logger
}

// NewLoader creates a Loader with defaults registered.
func NewLoader(logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.New(os.Stderr, "[config] ", log.LstdFlags)
	}

	v := viper.New()
	v.SetDefault("remote_url", "http://localhost:8000")
	v.SetDefault("api_key", "")
	v.SetDefault("feed_url", "")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("user_id", "")
	v.SetDefault("probe_interval", 15*time.Second)
	v.SetDefault("refresh_interval", 5*time.Minute)
	v.SetDefault("log_file", "")
	v.SetDefault("hub_port", 0)

	v.SetEnvPrefix("OWLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, logger: logger}
}

// Load reads the config file at path, or searches the standard locations
// when path is empty. A missing file is not an error; defaults and
// environment overrides apply.
func (l *Loader) Load(path string) (Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
	} else {
		l.v.SetConfigName("owlet")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "owlet"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			l.logger.Println("No config file found, using defaults")
		} else {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return l.snapshot(), nil
}

// Watch re-reads the config whenever the file changes and hands the fresh
// snapshot to fn. Callable only after a successful Load that found a file.
func (l *Loader) Watch(fn func(Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.logger.Printf("Config changed: %s", e.Name)
		fn(l.snapshot())
	})
	l.v.WatchConfig()
}

// snapshot materializes the current viper state.
func (l *Loader) snapshot() Config {
	return Config{
		RemoteURL:       l.v.GetString("remote_url"),
		APIKey:          l.v.GetString("api_key"),
		FeedURL:         l.v.GetString("feed_url"),
		DataDir:         l.v.GetString("data_dir"),
		UserID:          l.v.GetString("user_id"),
		ProbeInterval:   l.v.GetDuration("probe_interval"),
		RefreshInterval: l.v.GetDuration("refresh_interval"),
		LogFile:         l.v.GetString("log_file"),
		HubPort:         l.v.GetInt("hub_port"),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "owlet")
}
