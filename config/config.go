package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DBConfig Database configuration
type DBConfig struct {
	Type     string `yaml:"type" env:"TYPE"` // postgres or sqlite
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Name     string `yaml:"name" env:"NAME"`
	User     string `yaml:"user" env:"USER"`
	Passwd   string `yaml:"passwd" env:"PWD"`
	MaxConn  int    `yaml:"max_conn" env:"MAX_CONN"`
	IdleConn int    `yaml:"idle_conn" env:"IDLE_CONN"`
	Debug    bool   `yaml:"debug" env:"DEBUG"`
}

// SysConfig System configuration
type SysConfig struct {
	Appid    string `yaml:"appid" env:"APPID"`
	Location string `yaml:"location" env:"LOCATION"`
	Workdir  string `yaml:"workdir" env:"WORKDIR"`
	Debug    bool   `yaml:"debug" env:"DEBUG"`
}

// WebConfig Web server configuration
type WebConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
	// Secret signs session tokens
	Secret string `yaml:"secret" env:"SECRET"`
	// PublicURL is the base for links sent to customers (rating links)
	PublicURL      string   `yaml:"public_url" env:"PUBLIC_URL"`
	AllowOrigins   []string `yaml:"allow_origins" env:"ALLOW_ORIGINS" envSeparator:","`
	LoginRateLimit float64  `yaml:"login_rate_limit" env:"LOGIN_RATE_LIMIT"` // requests per second per IP
}

// WebhookConfig payment provider webhook settings
type WebhookConfig struct {
	AsaasToken string `yaml:"asaas_token" env:"ASAAS_TOKEN"`
	// AllowedCIDRs restricts webhook sources when non-empty
	AllowedCIDRs []string `yaml:"allowed_cidrs" env:"ALLOWED_CIDRS" envSeparator:","`
}

// LogConfig Logging configuration
type LogConfig struct {
	Mode       string `yaml:"mode" env:"MODE"`
	FileEnable bool   `yaml:"file_enable" env:"FILE_ENABLE"`
	Filename   string `yaml:"filename" env:"FILENAME"`
}

// SmtpConfig outgoing mail for alerts
type SmtpConfig struct {
	Host   string   `yaml:"host" env:"HOST"`
	Port   int      `yaml:"port" env:"PORT"`
	User   string   `yaml:"user" env:"USER"`
	Passwd string   `yaml:"passwd" env:"PWD"`
	From   string   `yaml:"from" env:"FROM"`
	Alerts []string `yaml:"alerts" env:"ALERTS" envSeparator:","`
}

// WhatsAppConfig outbound transport settings
type WhatsAppConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}

type AppConfig struct {
	System   SysConfig      `yaml:"system" envPrefix:"WADESK_SYSTEM_"`
	Web      WebConfig      `yaml:"web" envPrefix:"WADESK_WEB_"`
	Database DBConfig       `yaml:"database" envPrefix:"WADESK_DB_"`
	Logger   LogConfig      `yaml:"logger" envPrefix:"WADESK_LOGGER_"`
	Webhook  WebhookConfig  `yaml:"webhook" envPrefix:"WADESK_WEBHOOK_"`
	Smtp     SmtpConfig     `yaml:"smtp" envPrefix:"WADESK_SMTP_"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp" envPrefix:"WADESK_WHATSAPP_"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) GetUploadDir() string {
	return path.Join(c.System.Workdir, "uploads")
}

func (c *AppConfig) initDirs() {
	_ = os.MkdirAll(c.GetLogDir(), 0o755)
	_ = os.MkdirAll(c.GetDataDir(), 0o755)
	_ = os.MkdirAll(c.GetUploadDir(), 0o755)
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "wadesk",
		Location: "America/Sao_Paulo",
		Workdir:  "/var/wadesk",
		Debug:    true,
	},
	Web: WebConfig{
		Host:           "0.0.0.0",
		Port:           3000,
		Secret:         "9b6de5cc-0731-4bf1-xxxx-0f568ac9da37",
		PublicURL:      "http://localhost:3000",
		LoginRateLimit: 1,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "wadesk",
		User:     "postgres",
		Passwd:   "myroot",
		MaxConn:  100,
		IdleConn: 10,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/wadesk/wadesk.log",
	},
	Smtp: SmtpConfig{
		Port: 587,
	},
}

// LoadConfig reads the yaml file (when present), then applies .env and
// WADESK_* environment overrides.
func LoadConfig(cfile string) (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := *DefaultAppConfig
	if cfile == "" {
		cfile = "wadesk.yml"
	}
	if data, err := os.ReadFile(cfile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfile, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", cfile, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Web.PublicURL = strings.TrimRight(cfg.Web.PublicURL, "/")
	cfg.initDirs()
	return &cfg, nil
}
