// Package config provides configuration loading for rook.
// It supports a layered configuration approach with priority:
// CLI flags > environment variables (ROOK_*) > config file (~/.rook.yaml).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/buemura/rook/internal/logging"
	"github.com/buemura/rook/internal/store"
	"github.com/buemura/rook/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// AdviceConfig configures the optional advice endpoint.
type AdviceConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key"`
	Model    string        `mapstructure:"model" yaml:"model"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// HelperConfig configures the exploit-module RPC helper process.
type HelperConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Binary       string        `mapstructure:"binary" yaml:"binary"`
	Address      string        `mapstructure:"address" yaml:"address"`
	Port         int           `mapstructure:"port" yaml:"port"`
	User         string        `mapstructure:"user" yaml:"user"`
	Password     string        `mapstructure:"password" yaml:"password"`
	StartTimeout time.Duration `mapstructure:"start_timeout" yaml:"start_timeout"`
}

// FuzzConfig configures the content and subdomain fuzzers.
type FuzzConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	WebpageWordlist   string        `mapstructure:"webpage_wordlist" yaml:"webpage_wordlist"`
	SubdomainWordlist string        `mapstructure:"subdomain_wordlist" yaml:"subdomain_wordlist"`
	Delay             time.Duration `mapstructure:"delay" yaml:"delay"`
}

// ServerConfig configures the web UI.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Config holds all rook configuration options.
type Config struct {
	WorkDir       string                   `mapstructure:"work_dir" yaml:"work_dir"`
	Speed         string                   `mapstructure:"speed" yaml:"speed"`
	OutputFormat  string                   `mapstructure:"output_format" yaml:"output_format"`
	Verbose       bool                     `mapstructure:"verbose" yaml:"verbose"`
	ExtraCommands []string                 `mapstructure:"extra_commands" yaml:"extra_commands"`
	PortScan      types.PortScanOptions    `mapstructure:"port_scan" yaml:"port_scan"`
	Fuzz          FuzzConfig               `mapstructure:"fuzz" yaml:"fuzz"`
	Advice        AdviceConfig             `mapstructure:"advice" yaml:"advice"`
	Timeouts      map[string]time.Duration `mapstructure:"timeouts" yaml:"timeouts"`
	Helper        HelperConfig             `mapstructure:"helper" yaml:"helper"`
	Database      store.Config             `mapstructure:"database" yaml:"database"`
	Log           logging.Config           `mapstructure:"log" yaml:"log"`
	Server        ServerConfig             `mapstructure:"server" yaml:"server"`
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		WorkDir:      defaultWorkDir(),
		Speed:        string(types.SpeedCareful),
		OutputFormat: "table",
		PortScan:     types.PortScanOptions{ScanType: types.ScanTypeTCP, Timing: 4},
		Fuzz:         FuzzConfig{Enabled: true},
		Advice:       AdviceConfig{Model: "gpt-4", Endpoint: "https://api.openai.com/v1", Timeout: 2 * time.Minute},
		Helper: HelperConfig{
			Binary:       "msfrpcd",
			Address:      "127.0.0.1",
			Port:         55553,
			User:         "msf",
			Password:     "msf",
			StartTimeout: 90 * time.Second,
		},
		Database: store.Config{Driver: "sqlite", DSN: filepath.Join(defaultHome(), "rook.db")},
		Log:      logging.Config{Level: "info", Format: "text", Output: "stderr", MaxSize: 50, MaxBackups: 3, MaxAge: 28},
		Server:   ServerConfig{Addr: ":3000"},
	}
}

// Load reads configuration from ~/.rook.yaml and environment variables.
// It does NOT apply CLI flag overrides; call ApplyFlags for that.
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName(".rook")
	v.SetConfigType("yaml")

	home, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ROOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be enforced by types alone.
func (c *Config) Validate() error {
	if _, err := types.ParseSpeed(c.Speed); err != nil {
		return err
	}
	for name := range c.Timeouts {
		if !knownStage(types.Stage(name)) {
			return fmt.Errorf("timeouts: unknown stage %q", name)
		}
	}
	return nil
}

func knownStage(s types.Stage) bool {
	if s == types.StageExtraCommand {
		return true
	}
	for _, st := range types.AllStages {
		if st == s {
			return true
		}
	}
	return false
}

// ApplyFlags overrides config values with any CLI flags that were explicitly set.
func ApplyFlags(cfg *Config, cmd *cobra.Command) {
	flags := cmd.Flags()

	if flags.Changed("output") {
		val, _ := flags.GetString("output")
		cfg.OutputFormat = val
	}
	if flags.Changed("speed") {
		val, _ := flags.GetString("speed")
		cfg.Speed = val
	}
	if flags.Changed("work-dir") {
		val, _ := flags.GetString("work-dir")
		cfg.WorkDir = val
	}
	if flags.Changed("verbose") {
		val, _ := flags.GetBool("verbose")
		cfg.Verbose = val
	}
	if flags.Changed("ports") {
		val, _ := flags.GetString("ports")
		cfg.PortScan.Ports = val
	}
	if flags.Changed("scan-type") {
		val, _ := flags.GetString("scan-type")
		cfg.PortScan.ScanType = strings.ToUpper(val)
	}
	if flags.Changed("no-fuzz") {
		val, _ := flags.GetBool("no-fuzz")
		cfg.Fuzz.Enabled = !val
	}
	if flags.Changed("advice") {
		val, _ := flags.GetBool("advice")
		cfg.Advice.Enabled = val
	}
	if flags.Changed("helper") {
		val, _ := flags.GetBool("helper")
		cfg.Helper.Enabled = val
	}
	if flags.Changed("command") {
		val, _ := flags.GetStringArray("command")
		cfg.ExtraCommands = val
	}
	if flags.Changed("addr") {
		val, _ := flags.GetString("addr")
		cfg.Server.Addr = val
	}
	if flags.Changed("log-level") {
		val, _ := flags.GetString("log-level")
		cfg.Log.Level = val
	}
}

// ScanOptions builds the per-run options from the configuration.
func (c *Config) ScanOptions() (types.ScanOptions, error) {
	speed, err := types.ParseSpeed(c.Speed)
	if err != nil {
		return types.ScanOptions{}, err
	}

	opts := types.ScanOptions{
		PortScan: c.PortScan,
		Fuzz: types.FuzzOptions{
			Enabled:           c.Fuzz.Enabled,
			WebpageWordlist:   c.Fuzz.WebpageWordlist,
			SubdomainWordlist: c.Fuzz.SubdomainWordlist,
			Delay:             c.Fuzz.Delay,
		},
		EnableAdvice:  c.Advice.Enabled,
		Verbose:       c.Verbose,
		ExtraCommands: append([]string(nil), c.ExtraCommands...),
		Speed:         speed,
	}
	if len(c.Timeouts) > 0 {
		opts.Timeouts = make(map[types.Stage]time.Duration, len(c.Timeouts))
		for name, d := range c.Timeouts {
			opts.Timeouts[types.Stage(name)] = d
		}
	}
	return opts, nil
}

// ConfigFilePath returns the default config file path (~/.rook.yaml).
func ConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rook.yaml"
	}
	return filepath.Join(home, ".rook.yaml")
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rook"
	}
	return filepath.Join(home, ".rook")
}

func defaultWorkDir() string {
	return filepath.Join(defaultHome(), "work")
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("work_dir", d.WorkDir)
	v.SetDefault("speed", d.Speed)
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("verbose", false)
	v.SetDefault("port_scan.scan_type", d.PortScan.ScanType)
	v.SetDefault("port_scan.timing", d.PortScan.Timing)
	v.SetDefault("fuzz.enabled", d.Fuzz.Enabled)
	v.SetDefault("advice.enabled", false)
	v.SetDefault("advice.api_key", "")
	v.SetDefault("advice.model", d.Advice.Model)
	v.SetDefault("advice.endpoint", d.Advice.Endpoint)
	v.SetDefault("advice.timeout", d.Advice.Timeout)
	v.SetDefault("helper.enabled", false)
	v.SetDefault("helper.binary", d.Helper.Binary)
	v.SetDefault("helper.address", d.Helper.Address)
	v.SetDefault("helper.port", d.Helper.Port)
	v.SetDefault("helper.user", d.Helper.User)
	v.SetDefault("helper.password", d.Helper.Password)
	v.SetDefault("helper.start_timeout", d.Helper.StartTimeout)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("server.addr", d.Server.Addr)
}
