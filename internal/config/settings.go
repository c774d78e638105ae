package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rileyhilliard/nodeboard/internal/errors"
)

const (
	// SettingsFileName is the per-site settings file.
	SettingsFileName = ".nodeboard.yaml"
	// GlobalSettingsDir is the directory for user-wide settings, relative to home.
	GlobalSettingsDir = ".config/nodeboard"
	// GlobalSettingsFile is the user-wide settings file name.
	GlobalSettingsFile = "config.yaml"
	// EnvPrefix prefixes every environment override, e.g. NODEBOARD_SOURCE.
	EnvPrefix = "NODEBOARD"
)

// Settings are the process-level options: where to read documents from and
// how the surfaces and agent behave. They are separate from the dashboard
// documents, which live at the source.
type Settings struct {
	Source                string        `yaml:"source" mapstructure:"source"`
	ConfigPath            string        `yaml:"config_path" mapstructure:"config_path"`
	DataPath              string        `yaml:"data_path" mapstructure:"data_path"`
	Timeout               time.Duration `yaml:"timeout" mapstructure:"timeout"`
	SkipInflight          bool          `yaml:"skip_inflight" mapstructure:"skip_inflight"`
	Listen                string        `yaml:"listen" mapstructure:"listen"`
	RefreshLimit          float64       `yaml:"refresh_limit" mapstructure:"refresh_limit"`
	StrictHostKeyChecking bool          `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`
	Agent                 AgentSettings `yaml:"agent" mapstructure:"agent"`
}

// AgentSettings configure `nodeboard agent`.
type AgentSettings struct {
	Out            string        `yaml:"out" mapstructure:"out"`
	SampleInterval time.Duration `yaml:"sample_interval" mapstructure:"sample_interval"`
	HistoryDays    int           `yaml:"history_days" mapstructure:"history_days"`
	DiskMounts     []string      `yaml:"disk_mounts" mapstructure:"disk_mounts"`
	ExcludeUsers   []string      `yaml:"exclude_users" mapstructure:"exclude_users"`
	MinUserPercent float64       `yaml:"min_user_percent" mapstructure:"min_user_percent"`
	NvidiaSMI      string        `yaml:"nvidia_smi" mapstructure:"nvidia_smi"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() *Settings {
	return &Settings{
		Source:                ".",
		ConfigPath:            "config",
		DataPath:              "data",
		Timeout:               10 * time.Second,
		SkipInflight:          true,
		Listen:                ":8080",
		RefreshLimit:          1,
		StrictHostKeyChecking: true,
		Agent: AgentSettings{
			Out:            "data",
			SampleInterval: 60 * time.Second,
			HistoryDays:    7,
			DiskMounts:     []string{"/home"},
			ExcludeUsers:   []string{"root"},
			MinUserPercent: 1,
			NvidiaSMI:      "nvidia-smi",
		},
	}
}

// NewViper returns a viper instance with defaults and NODEBOARD_* env
// overrides registered. Nested keys map to env with '_' (agent.out -> NODEBOARD_AGENT_OUT).
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("source", d.Source)
	v.SetDefault("config_path", d.ConfigPath)
	v.SetDefault("data_path", d.DataPath)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("skip_inflight", d.SkipInflight)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("refresh_limit", d.RefreshLimit)
	v.SetDefault("strict_host_key_checking", d.StrictHostKeyChecking)
	v.SetDefault("agent.out", d.Agent.Out)
	v.SetDefault("agent.sample_interval", d.Agent.SampleInterval)
	v.SetDefault("agent.history_days", d.Agent.HistoryDays)
	v.SetDefault("agent.disk_mounts", d.Agent.DiskMounts)
	v.SetDefault("agent.exclude_users", d.Agent.ExcludeUsers)
	v.SetDefault("agent.min_user_percent", d.Agent.MinUserPercent)
	v.SetDefault("agent.nvidia_smi", d.Agent.NvidiaSMI)
}

// LoadSettings resolves settings from, in increasing precedence: defaults,
// the settings file, .env and NODEBOARD_* environment variables, and flags
// already bound to v. explicit is the --config flag value.
func LoadSettings(v *viper.Viper, explicit string) (*Settings, string, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	path, err := FindSettings(explicit)
	if err != nil {
		return nil, "", err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read settings file "+path,
				"Check the file is valid YAML")
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, "", errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid settings",
			"Check value types in "+displayPath(path))
	}

	s.Source = ExpandTilde(s.Source)
	s.Agent.Out = ExpandTilde(s.Agent.Out)

	if err := s.Validate(); err != nil {
		return nil, "", err
	}
	return s, path, nil
}

// Validate checks settings values.
func (s *Settings) Validate() error {
	if s.Timeout <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("timeout must be positive, got %s", s.Timeout),
			"Set timeout to a duration such as 10s.")
	}
	if s.RefreshLimit <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("refresh_limit must be positive, got %v", s.RefreshLimit),
			"refresh_limit is the number of manual refreshes allowed per second.")
	}
	if s.Agent.SampleInterval < time.Second {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("agent.sample_interval must be at least 1s, got %s", s.Agent.SampleInterval),
			"The agent samples GPUs once per interval; 60s is typical.")
	}
	return nil
}

// FindSettings locates the settings file:
//  1. explicit path (from --config)
//  2. .nodeboard.yaml in the current directory
//  3. ~/.config/nodeboard/config.yaml
//
// Returns "" when none exists; defaults are used in that case.
func FindSettings(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified settings file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access settings file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}
	if local := filepath.Join(cwd, SettingsFileName); fileExists(local) {
		return local, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		if global := filepath.Join(home, GlobalSettingsDir, GlobalSettingsFile); fileExists(global) {
			return global, nil
		}
	}

	return "", nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func displayPath(path string) string {
	if path == "" {
		return "your environment and flags"
	}
	return path
}

// ExpandTilde replaces a leading ~ with the user's home directory.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}
