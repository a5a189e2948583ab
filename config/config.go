package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/maastricht-university/upsot-pipeline/params"
	"github.com/maastricht-university/upsot-pipeline/scoring"
)

// EnvPrefix prefixes environment overrides, e.g. UPSOT_SMTP_HOST.
const EnvPrefix = "UPSOT"

type Service struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Timeout int    `yaml:"timeout" mapstructure:"timeout"` // sec
}
type Services struct {
	ASR Service `yaml:"asr" mapstructure:"asr"`
}
type Server struct {
	Addr           string `yaml:"addr" mapstructure:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}
type SMTP struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
	// Simulate skips delivery and reports success; implied when Host is empty.
	Simulate bool `yaml:"simulate" mapstructure:"simulate"`
}
type Script struct {
	MaxLength int `yaml:"max_length" mapstructure:"max_length"`
}
type Root struct {
	Pipeline struct {
		Name    string `yaml:"name" mapstructure:"name"`
		Version string `yaml:"version" mapstructure:"version"`
		LogLvl  string `yaml:"log_level" mapstructure:"log_level"`
	} `yaml:"pipeline" mapstructure:"pipeline"`
	Server   Server            `yaml:"server" mapstructure:"server"`
	Services Services          `yaml:"services" mapstructure:"services"`
	SMTP     SMTP              `yaml:"smtp" mapstructure:"smtp"`
	Script   Script            `yaml:"script" mapstructure:"script"`
	Defaults params.Parameters `yaml:"defaults" mapstructure:"defaults"`
	Paths    struct {
		Data    string `yaml:"data" mapstructure:"data"`
		Outputs string `yaml:"outputs" mapstructure:"outputs"`
	} `yaml:"paths" mapstructure:"paths"`
}

// Default returns a Root with every field at its default.
func Default() *Root {
	var c Root
	c.Defaults = params.Defaults()
	c.ApplyDefaults()
	return &c
}

// Load reads the YAML file at path, or the first of the conventional
// locations when path is empty, then applies overrides from v. A missing
// file is not an error when path is empty. v may be nil.
func Load(path string, v *viper.Viper) (*Root, error) {
	cfg := Default()

	guess := []string{path}
	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		guess = []string{
			filepath.Join("config", env, "config.yaml"),
			"config.yaml",
		}
	}
	for _, p := range guess {
		f, err := os.Open(p)
		if err != nil {
			if path == "" && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("config: open %s: %w", p, err)
		}
		err = yaml.NewDecoder(f).Decode(cfg)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", p, err)
		}
		break
	}

	if v != nil {
		if err := overlay(cfg, v); err != nil {
			return nil, err
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewViper returns a viper instance reading UPSOT_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// overlay seeds v with the values already in cfg, so environment
// variables and bound flags can resolve every key, then decodes v back
// into cfg through the mapstructure tags.
func overlay(cfg *Root, v *viper.Viper) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	var seed map[string]any
	if err := yaml.Unmarshal(b, &seed); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := v.MergeConfigMap(seed); err != nil {
		return fmt.Errorf("config: seed overrides: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: apply overrides: %w", err)
	}
	return nil
}

// ApplyDefaults fills zero-valued fields.
func (c *Root) ApplyDefaults() {
	if c.Pipeline.Name == "" {
		c.Pipeline.Name = "upsot-pipeline"
	}
	if c.Pipeline.LogLvl == "" {
		c.Pipeline.LogLvl = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 200 << 20
	}
	if c.Services.ASR.URL == "" {
		c.Services.ASR.URL = "http://localhost:8387"
	}
	if c.Services.ASR.Timeout == 0 {
		c.Services.ASR.Timeout = 600
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.From == "" {
		c.SMTP.From = "noreply@localhost"
	}
	if c.Script.MaxLength == 0 {
		c.Script.MaxLength = scoring.DefaultMaxScriptLength
	}
	if c.Paths.Data == "" {
		c.Paths.Data = filepath.Join("data", "audio")
	}
	if c.Paths.Outputs == "" {
		c.Paths.Outputs = "outputs"
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Root) Validate() error {
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("config: defaults: %w", err)
	}
	if c.Script.MaxLength < 0 {
		return fmt.Errorf("config: script.max_length must not be negative")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("config: smtp.port %d out of range", c.SMTP.Port)
	}
	return nil
}

// SimulateEmail reports whether email delivery should be simulated.
func (c *Root) SimulateEmail() bool { return c.SMTP.Simulate || c.SMTP.Host == "" }

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
