// Package config loads the service configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr        string        `yaml:"addr"`
	CORSOrigins []string      `yaml:"corsOrigins"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
	MaxUploadMB int64         `yaml:"maxUploadMB"`
}

type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // optional rotated file sink
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

type Model struct {
	Dir string `yaml:"dir"`
}

type Upload struct {
	Dir      string        `yaml:"dir"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

type Storage struct {
	Path string `yaml:"path"`
}

type JWT struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type Slack struct {
	Enabled bool   `yaml:"enabled"`
	Webhook string `yaml:"webhook"`
}

type Mail struct {
	Enabled    bool   `yaml:"enabled"`
	SMTPServer string `yaml:"smtpServer"`
	SMTPPort   int    `yaml:"smtpPort"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	From       string `yaml:"from"`
	AlertEmail string `yaml:"alertEmail"`
}

type Tracing struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

type Config struct {
	Server    Server  `yaml:"server"`
	Log       Log     `yaml:"log"`
	Model     Model   `yaml:"model"`
	Upload    Upload  `yaml:"upload"`
	Storage   Storage `yaml:"storage"`
	AuthToken string  `yaml:"authToken"`
	JWT       JWT     `yaml:"jwt"`
	Slack     Slack   `yaml:"slack"`
	Mail      Mail    `yaml:"mail"`
	Tracing   Tracing `yaml:"tracing"`
}

func Default() Config {
	return Config{
		Server:  Server{Addr: ":8080", CORSOrigins: []string{"*"}, ReadTimeout: 30 * time.Second, MaxUploadMB: 256},
		Log:     Log{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Model:   Model{Dir: "models"},
		Upload:  Upload{Dir: "uploads", CacheTTL: 5 * time.Minute},
		Storage: Storage{Path: "data/weblog.db"},
		JWT:     JWT{TTL: 24 * time.Hour},
		Mail:    Mail{SMTPServer: "smtp.gmail.com", SMTPPort: 587},
		Tracing: Tracing{ServiceName: "go-weblog-analyzer", OTLPEndpoint: "localhost:4317", SampleRatio: 1.0},
	}
}

// Load reads path over the defaults. A missing file is not an error; a
// malformed one is. Environment variables win over the file.
func Load(path string) (Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"HTTP_ADDR":     &c.Server.Addr,
		"LOG_LEVEL":     &c.Log.Level,
		"MODEL_DIR":     &c.Model.Dir,
		"UPLOAD_DIR":    &c.Upload.Dir,
		"STORAGE_PATH":  &c.Storage.Path,
		"AUTH_TOKEN":    &c.AuthToken,
		"JWT_SECRET":    &c.JWT.Secret,
		"SMTP_SERVER":   &c.Mail.SMTPServer,
		"SMTP_USER":     &c.Mail.Username,
		"SMTP_PASSWORD": &c.Mail.Password,
		"FROM_EMAIL":    &c.Mail.From,
		"ALERT_EMAIL":   &c.Mail.AlertEmail,
		"SLACK_WEBHOOK": &c.Slack.Webhook,
	}
	for k, dst := range str {
		if v, ok := lookup(k); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("SLACK_WEBHOOK"); ok && v != "" {
		c.Slack.Enabled = true
	}
	if v, ok := lookup("MAIL_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MAIL_ENABLED: %w", err)
		}
		c.Mail.Enabled = b
	}
	if v, ok := lookup("SMTP_PORT"); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %w", err)
		}
		c.Mail.SMTPPort = p
	}
	return nil
}
