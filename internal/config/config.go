package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "PIPERUP_CONFIG"

type Config struct {
	Service  Service  `yaml:"service"`
	Health   Health   `yaml:"health"`
	Delegate Delegate `yaml:"delegate"`
	Log      Log      `yaml:"log"`
	Metrics  Metrics  `yaml:"metrics"`
	Bus      Bus      `yaml:"bus"`
}

type Service struct {
	Name          string `yaml:"name"`
	Image         string `yaml:"image"`
	HostPort      int    `yaml:"host_port"`
	ContainerPort int    `yaml:"container_port"`
	RestartPolicy string `yaml:"restart_policy"`
}

type Health struct {
	URL         string        `yaml:"url"`
	ReadyStatus []int         `yaml:"ready_status"`
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Delegate struct {
	Command []string `yaml:"command"`
	// Dir defaults to the directory holding the piperup binary.
	Dir       string `yaml:"dir"`
	ExtraPath string `yaml:"extra_path"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Metrics struct {
	Pushgateway string `yaml:"pushgateway"`
	Job         string `yaml:"job"`
}

type Bus struct {
	URL            string        `yaml:"url"`
	Token          string        `yaml:"token"`
	Subject        string        `yaml:"subject"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Resolve picks the config file path: the explicit flag value, then
// $PIPERUP_CONFIG, then ~/.config/piperup/config.yaml. explicit reports
// whether the caller named the file, in which case it must exist.
func Resolve(flagPath string) (path string, explicit bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v, true
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(home, ".config", "piperup", "config.yaml"), false
}

// LoadOrDefault loads the resolved config file, falling back to Default
// when the implicit location has no file.
func LoadOrDefault(flagPath string) (*Config, string, error) {
	path, explicit := Resolve(flagPath)
	if path == "" {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), "", nil
		}
		return nil, path, err
	}
	return cfg, path, nil
}

func applyDefaults(cfg *Config) {
	s := &cfg.Service
	if s.Name == "" {
		s.Name = "piper"
	}
	if s.Image == "" {
		s.Image = "piper-tts-mcp:latest"
	}
	if s.HostPort == 0 {
		s.HostPort = 5001
	}
	if s.ContainerPort == 0 {
		s.ContainerPort = 5000
	}
	if s.RestartPolicy == "" {
		s.RestartPolicy = "unless-stopped"
	}

	h := &cfg.Health
	if h.URL == "" {
		h.URL = "http://localhost:5001"
	}
	if len(h.ReadyStatus) == 0 {
		// 405: the TTS endpoint only accepts POST, so a GET proves it is listening.
		h.ReadyStatus = []int{200, 405}
	}
	if h.MaxAttempts == 0 {
		h.MaxAttempts = 30
	}
	if h.Interval == 0 {
		h.Interval = 500 * time.Millisecond
	}
	if h.Timeout == 0 {
		h.Timeout = 2 * time.Second
	}

	d := &cfg.Delegate
	if len(d.Command) == 0 {
		d.Command = []string{"uv", "run", "server.py"}
	}
	if d.ExtraPath == "" {
		d.ExtraPath = "~/.local/bin"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "off"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "piperup"
	}

	if cfg.Bus.Subject == "" {
		cfg.Bus.Subject = "piperup.events"
	}
	if cfg.Bus.ConnectTimeout == 0 {
		cfg.Bus.ConnectTimeout = 2 * time.Second
	}
}
