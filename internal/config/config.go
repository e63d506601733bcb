// Package config holds the reqhub configuration: a TOML file overlaid by
// REQHUB_* environment variables, decoded into a typed Config.
//
// The [settings] table is free-form. Its flattened keys are the settings
// shared with webviews through settingsChanged.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/reqhub/internal/config/loader"
)

var logger = loggo.GetLogger("reqhub.config")

// FileName is the default config file name.
const FileName = "reqhub.toml"

// Duration is a time.Duration written as a string such as "3s".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.NewNotValid(err, "duration")
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete configuration.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Hub       HubConfig       `toml:"hub"`
	Host      HostConfig      `toml:"host"`
	Shell     ShellConfig     `toml:"shell"`
	Traffic   TrafficConfig   `toml:"traffic"`
	StatusBar StatusBarConfig `toml:"statusBar"`
	Scripts   ScriptsConfig   `toml:"scripts"`
	Settings  map[string]any  `toml:"settings"`
}

// LogConfig configures loggo.
type LogConfig struct {
	// Level is a loggo specification such as "<root>=INFO;reqhub.hub=TRACE".
	Level string `toml:"level"`
}

// ServerConfig configures the webview listener.
type ServerConfig struct {
	Addr          string `toml:"addr"`
	WebSocketPath string `toml:"webSocketPath"`
	MetricsPath   string `toml:"metricsPath"`
}

// HubConfig configures every hub the host creates.
type HubConfig struct {
	HandlerTimeout Duration `toml:"handlerTimeout"`
}

// HostConfig configures the broadcast target.
type HostConfig struct {
	NotificationLimit int `toml:"notificationLimit"`
}

// ShellConfig configures the shell backend session. An empty URL disables
// it.
type ShellConfig struct {
	URL            string   `toml:"url"`
	GracePeriod    Duration `toml:"gracePeriod"`
	RetryDelay     Duration `toml:"retryDelay"`
	MaxRetryDelay  Duration `toml:"maxRetryDelay"`
	RequestTimeout Duration `toml:"requestTimeout"`
	Debug          bool     `toml:"debug"`
}

// TrafficConfig configures the communication debugger.
type TrafficConfig struct {
	Enabled bool `toml:"enabled"`
	Limit   int  `toml:"limit"`
	// Forward executes debugger requisitions for recorded traffic.
	Forward bool `toml:"forward"`
}

// StatusBarConfig configures the terminal status line.
type StatusBarConfig struct {
	Terminal bool `toml:"terminal"`
}

// ScriptsConfig configures Lua subscribers.
type ScriptsConfig struct {
	// Dir holds .lua files loaded at startup.
	Dir string `toml:"dir"`
}

// Default returns the configuration used for unset values.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "<root>=INFO"},
		Server: ServerConfig{
			Addr:          "127.0.0.1:8765",
			WebSocketPath: "/ws",
			MetricsPath:   "/metrics",
		},
		Hub:  HubConfig{HandlerTimeout: Duration(30 * time.Second)},
		Host: HostConfig{NotificationLimit: 200},
		Shell: ShellConfig{
			GracePeriod:   Duration(3 * time.Second),
			RetryDelay:    Duration(500 * time.Millisecond),
			MaxRetryDelay: Duration(10 * time.Second),
		},
		Traffic:  TrafficConfig{Limit: 1000},
		Settings: map[string]any{},
	}
}

// DefaultPath returns the config file in the user config directory, or
// FileName in the working directory when there is none.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(dir, "reqhub", FileName)
}

// sections are the top-level tables environment variables may set.
var sections = []string{"log", "server", "hub", "host", "shell", "traffic", "statusBar", "scripts", "settings"}

// Load reads the file at path and the process environment.
func Load(path string) (*Config, error) {
	return LoadFrom(path, os.Environ())
}

// LoadFrom reads the file at path and overlays environ.
func LoadFrom(path string, environ []string) (*Config, error) {
	env := loader.NewEnvLoaderFrom(loader.Prefix, environ)
	env.AddMapping(loader.Prefix+"STATUSBAR_TERMINAL", "statusBar.terminal")
	env.RestrictSections(sections...)

	values, err := loader.Load(loader.NewTOMLLoader(path), env)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Decode(values)
}

// Decode fills a default Config from merged values. Unknown keys outside
// [settings] are rejected.
func Decode(values map[string]any) (*Config, error) {
	cfg := Default()
	if len(values) == 0 {
		return cfg, nil
	}

	data, err := toml.Marshal(values)
	if err != nil {
		return nil, errors.Annotate(err, "encoding config")
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, errors.NotValidf("config keys %s", unknownKeys(strict))
		}
		return nil, errors.NewNotValid(err, "config")
	}
	if cfg.Settings == nil {
		cfg.Settings = map[string]any{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

func unknownKeys(e *toml.StrictMissingError) string {
	keys := make([]string, 0, len(e.Errors))
	for _, de := range e.Errors {
		keys = append(keys, strings.Join(de.Key(), "."))
	}
	return strings.Join(keys, ", ")
}

// Validate checks values that decoding cannot.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.NotValidf("empty server.addr")
	}
	if c.Traffic.Limit < 0 {
		return errors.NotValidf("negative traffic.limit %d", c.Traffic.Limit)
	}
	if c.Host.NotificationLimit < 0 {
		return errors.NotValidf("negative host.notificationLimit %d", c.Host.NotificationLimit)
	}
	return nil
}

// FlatSettings returns the settings keyed by dotted path.
func (c *Config) FlatSettings() map[string]any {
	return loader.Flatten(c.Settings)
}
