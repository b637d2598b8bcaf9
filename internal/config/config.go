package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format    string `mapstructure:"format"`
	Level     string `mapstructure:"level"`
	LogFormat string `mapstructure:"log_format"`
	Quiet     bool   `mapstructure:"quiet"`
	Verbose   bool   `mapstructure:"verbose"`

	// Workspace is the directory session labels are made relative to
	Workspace string `mapstructure:"workspace"`

	// Dispatch selects how service calls reach sessions: vmservice or host
	Dispatch string `mapstructure:"dispatch"`

	Adapter   AdapterConfig   `mapstructure:"adapter"`
	VMService VMServiceConfig `mapstructure:"vm_service"`
	Open      OpenConfig      `mapstructure:"open"`
	View      ViewConfig      `mapstructure:"view"`
}

// AdapterConfig describes the debug adapter sessions are filtered by
type AdapterConfig struct {
	EventPrefix  string `mapstructure:"event_prefix"`
	DebugType    string `mapstructure:"debug_type"`
	DebuggerType int    `mapstructure:"debugger_type"`
}

// VMServiceConfig tunes the websocket transport
type VMServiceConfig struct {
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	QueueSize   int           `mapstructure:"queue_size"`
}

// OpenConfig tunes the open command
type OpenConfig struct {
	ReadyTimeout     time.Duration `mapstructure:"ready_timeout"`
	DiscoverTimeout  time.Duration `mapstructure:"discover_timeout"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// ViewConfig controls how views are rendered
type ViewConfig struct {
	Theme   string `mapstructure:"theme"`
	BaseURI string `mapstructure:"base_uri"`
	HTMLDir string `mapstructure:"html_dir"`
}

// Dispatch modes
const (
	DispatchVMService = "vmservice"
	DispatchHost      = "host"
)

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:    "ndjson",
		Level:     "info",
		LogFormat: "console",
		Quiet:     false,
		Verbose:   false,
		Dispatch:  DispatchVMService,
		Adapter: AdapterConfig{
			EventPrefix:  "dart",
			DebugType:    "dart",
			DebuggerType: 2,
		},
		VMService: VMServiceConfig{
			CallTimeout: 10 * time.Second,
			DialTimeout: 5 * time.Second,
			QueueSize:   64,
		},
		Open: OpenConfig{
			ReadyTimeout:     2 * time.Minute,
			DiscoverTimeout:  0,
			ProgressInterval: 5 * time.Second,
		},
		View: ViewConfig{
			Theme:   "dark",
			BaseURI: "dist/explo_ide_view/",
		},
	}
}

// Load loads configuration from the first config file found and the
// environment. Environment variables use the EXPLO_ prefix with dots replaced
// by underscores, e.g. EXPLO_OPEN_READY_TIMEOUT.
func Load() (*Config, error) {
	v := newViper()

	if path := findConfigFile(); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFile returns the path to the config file Load would read
func ConfigFile() string {
	return findConfigFile()
}

// newViper returns a viper instance with defaults registered for every key,
// so AutomaticEnv can override all of them.
func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("EXPLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := Default()
	v.SetDefault("format", cfg.Format)
	v.SetDefault("level", cfg.Level)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("workspace", cfg.Workspace)
	v.SetDefault("dispatch", cfg.Dispatch)
	v.SetDefault("adapter.event_prefix", cfg.Adapter.EventPrefix)
	v.SetDefault("adapter.debug_type", cfg.Adapter.DebugType)
	v.SetDefault("adapter.debugger_type", cfg.Adapter.DebuggerType)
	v.SetDefault("vm_service.call_timeout", cfg.VMService.CallTimeout)
	v.SetDefault("vm_service.dial_timeout", cfg.VMService.DialTimeout)
	v.SetDefault("vm_service.queue_size", cfg.VMService.QueueSize)
	v.SetDefault("open.ready_timeout", cfg.Open.ReadyTimeout)
	v.SetDefault("open.discover_timeout", cfg.Open.DiscoverTimeout)
	v.SetDefault("open.progress_interval", cfg.Open.ProgressInterval)
	v.SetDefault("view.theme", cfg.View.Theme)
	v.SetDefault("view.base_uri", cfg.View.BaseURI)
	v.SetDefault("view.html_dir", cfg.View.HTMLDir)
	return v
}

// findConfigFile searches, highest precedence first: the current directory,
// the user config directory, the home directory and /etc/explo.
func findConfigFile() string {
	var candidates []string

	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates,
			filepath.Join(cwd, "explo.yaml"),
			filepath.Join(cwd, ".explo.yaml"),
			filepath.Join(cwd, ".explo.yml"),
			filepath.Join(cwd, ".explorc"),
		)
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(configDir, "explo", "explo.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".explo.yaml"),
			filepath.Join(home, ".explorc"),
		)
	}
	candidates = append(candidates, "/etc/explo/explo.yaml")

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
