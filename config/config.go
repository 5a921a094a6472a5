package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Identity  IdentityConfig  `yaml:"identity"`
	Files     FilesConfig     `yaml:"files"`
	Transcode TranscodeConfig `yaml:"transcode"`
	Speech    SpeechConfig    `yaml:"speech"`
	QA        QAConfig        `yaml:"qa"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	RateLimit int    `yaml:"rate_limit"` // messages per minute per client host
}

type IdentityConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`
	TokenURL     string `yaml:"token_url"`
}

type FilesConfig struct {
	WorkDir string `yaml:"work_dir"`
}

type TranscodeConfig struct {
	FFmpegPath   string `yaml:"ffmpeg_path"`
	MediaTimeout string `yaml:"media_timeout"`
}

type SpeechConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Language string `yaml:"language"`
}

type QAConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3978"
	}
	if c.Server.RateLimit <= 0 {
		c.Server.RateLimit = 60
	}
	if c.Files.WorkDir == "" {
		c.Files.WorkDir = os.TempDir()
	}
	if c.Transcode.FFmpegPath == "" {
		c.Transcode.FFmpegPath = "ffmpeg"
	}
	if c.Transcode.MediaTimeout == "" {
		c.Transcode.MediaTimeout = "90s"
	}
	if c.Speech.Language == "" {
		c.Speech.Language = "en-US"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.Identity.TenantID == "" && c.Identity.TokenURL == "" {
		return fmt.Errorf("identity: tenant_id or token_url is required")
	}
	if c.Identity.ClientID == "" {
		return fmt.Errorf("identity: client_id is required")
	}
	if c.Identity.ClientSecret == "" {
		return fmt.Errorf("identity: client_secret is required")
	}
	if c.Speech.Endpoint == "" {
		return fmt.Errorf("speech: endpoint is required")
	}
	if c.Speech.APIKey == "" {
		return fmt.Errorf("speech: api_key is required")
	}
	if c.QA.Endpoint == "" {
		return fmt.Errorf("qa: endpoint is required")
	}
	return nil
}
