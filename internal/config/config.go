package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/filosign-dapp/devrun/internal/env"
	"github.com/filosign-dapp/devrun/internal/logger"
	"github.com/filosign-dapp/devrun/internal/process"
	"github.com/spf13/viper"
)

// DefaultFile is read from the project root when no --config is given.
const DefaultFile = "devrun.toml"

// EnvPrefix prefixes environment overrides, e.g. DEVRUN_STOP_TIMEOUT=3s.
const EnvPrefix = "DEVRUN"

// ProcessConfig configures one child process.
type ProcessConfig struct {
	Command string   `mapstructure:"command" json:"command"`
	WorkDir string   `mapstructure:"workdir" json:"workdir,omitempty"`
	Env     []string `mapstructure:"env" json:"env,omitempty"`
}

// WatchConfig selects the directories and files whose changes restart the pair.
type WatchConfig struct {
	Enabled    bool          `mapstructure:"enabled" json:"enabled"`
	Paths      []string      `mapstructure:"paths" json:"paths"`
	Extensions []string      `mapstructure:"extensions" json:"extensions"`
	Exclude    []string      `mapstructure:"exclude" json:"exclude"`
	Debounce   time.Duration `mapstructure:"debounce" json:"debounce"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `mapstructure:"listen" json:"listen,omitempty"`
}

// Config is the effective configuration of a session after defaults, the
// config file, DEVRUN_* environment variables and flag overrides.
type Config struct {
	Root         string        `mapstructure:"root" json:"root"`
	Marker       string        `mapstructure:"marker" json:"marker"`
	Client       ProcessConfig `mapstructure:"client" json:"client"`
	Server       ProcessConfig `mapstructure:"server" json:"server"`
	Watch        WatchConfig   `mapstructure:"watch" json:"watch"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout" json:"stop_timeout"`
	RestartDelay time.Duration `mapstructure:"restart_delay" json:"restart_delay"`
	PollInterval time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
	Env          []string      `mapstructure:"env" json:"env,omitempty"`
	EnvFiles     []string      `mapstructure:"env_files" json:"env_files,omitempty"`
	Log          logger.Config `mapstructure:"log" json:"log"`
	Metrics      MetricsConfig `mapstructure:"metrics" json:"metrics"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" json:"file,omitempty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("marker", "package.json")
	v.SetDefault("client.command", "bun run client:dev")
	v.SetDefault("client.workdir", "")
	v.SetDefault("client.env", []string{})
	v.SetDefault("server.command", "bun run server:start")
	v.SetDefault("server.workdir", "")
	v.SetDefault("server.env", []string{})
	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.paths", []string{
		"packages/client/src",
		"packages/client/api",
		"packages/server",
		"packages/lib",
		"packages/contracts/src",
	})
	v.SetDefault("watch.extensions", []string{".ts", ".tsx", ".js", ".jsx"})
	v.SetDefault("watch.exclude", []string{"node_modules", ".git", "dist", "build", ".next", "coverage", ".cache", "artifacts"})
	v.SetDefault("watch.debounce", 2*time.Second)
	v.SetDefault("stop_timeout", 5*time.Second)
	v.SetDefault("restart_delay", 1*time.Second)
	v.SetDefault("poll_interval", 1*time.Second)
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.color", "auto")
	v.SetDefault("log.file", "")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.max_size_mb", 0)
	v.SetDefault("log.max_backups", 0)
	v.SetDefault("log.max_age_days", 0)
	v.SetDefault("log.compress", false)
	v.SetDefault("metrics.listen", "")
}

// Load builds the effective configuration. path names an explicit config
// file (TOML, or any format viper recognizes by extension); when empty,
// <root>/devrun.toml is read if present. overrides are applied last, keyed
// by config key (e.g. "client.command").
func Load(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range overrides {
		v.Set(k, val)
	}

	if path == "" {
		candidate := filepath.Join(v.GetString("root"), DefaultFile)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("toml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.File = path

	root, err := filepath.Abs(c.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", c.Root, err)
	}
	c.Root = root

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Marker) == "" {
		errs = append(errs, errors.New("marker must not be empty"))
	}
	if strings.TrimSpace(c.Client.Command) == "" {
		errs = append(errs, errors.New("client.command must not be empty"))
	}
	if strings.TrimSpace(c.Server.Command) == "" {
		errs = append(errs, errors.New("server.command must not be empty"))
	}
	for key, d := range map[string]time.Duration{
		"stop_timeout":   c.StopTimeout,
		"restart_delay":  c.RestartDelay,
		"poll_interval":  c.PollInterval,
		"watch.debounce": c.Watch.Debounce,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", key, d))
		}
	}
	if c.Watch.Enabled && len(c.Watch.Extensions) == 0 {
		errs = append(errs, errors.New("watch.extensions must list at least one extension"))
	}
	var kvs []string
	kvs = append(kvs, c.Env...)
	kvs = append(kvs, c.Client.Env...)
	kvs = append(kvs, c.Server.Env...)
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i <= 0 {
			errs = append(errs, fmt.Errorf("env entry %q must be KEY=VALUE", kv))
		}
	}
	return errors.Join(errs...)
}

// ClientSpec returns the process spec of the client.
func (c *Config) ClientSpec() process.Spec { return c.spec("CLIENT", c.Client) }

// ServerSpec returns the process spec of the server.
func (c *Config) ServerSpec() process.Spec { return c.spec("SERVER", c.Server) }

func (c *Config) spec(label string, pc ProcessConfig) process.Spec {
	dir := c.Root
	if pc.WorkDir != "" {
		dir = pc.WorkDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(c.Root, dir)
		}
	}
	return process.Spec{Label: label, Command: pc.Command, WorkDir: dir, Env: pc.Env}
}

// Environment builds the session environment: the OS environment, then each
// env file in order, then the top-level env list. Relative env file paths
// are resolved under Root.
func (c *Config) Environment() (*env.Env, error) {
	e := env.New()
	e.FromOS()
	for _, f := range c.EnvFiles {
		if !filepath.IsAbs(f) {
			f = filepath.Join(c.Root, f)
		}
		if err := e.LoadFile(f); err != nil {
			return nil, err
		}
	}
	e.SetPairs(c.Env)
	return e, nil
}

// MarkerPath is the absolute path of the project marker file.
func (c *Config) MarkerPath() string {
	return filepath.Join(c.Root, c.Marker)
}
