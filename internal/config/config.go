package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

const DefaultPath = "config/config.yaml"

// Bootstrap is read from the environment before the config file is located.
type Bootstrap struct {
	ConfigPath string `env:"SEEDPING_CONFIG" envDefault:"config/config.yaml"`
	EnvOnly    bool   `env:"SEEDPING_ENV_ONLY" envDefault:"false"`
}

func LoadBootstrap() (Bootstrap, error) {
	var b Bootstrap
	if err := env.Parse(&b); err != nil {
		return Bootstrap{}, err
	}
	b.ConfigPath = strings.TrimSpace(b.ConfigPath)
	if b.ConfigPath == "" {
		b.ConfigPath = DefaultPath
	}
	return b, nil
}

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
	Settings SettingsConfig `mapstructure:"settings"`
	CRCON    CRCONConfig    `mapstructure:"crcon"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Server   ServerConfig   `mapstructure:"server"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type LogConfig struct {
	Level             string   `mapstructure:"level"`
	Encoding          string   `mapstructure:"encoding"`
	Development       bool     `mapstructure:"development"`
	Sampling          bool     `mapstructure:"sampling"`
	DisableCaller     bool     `mapstructure:"disable_caller"`
	DisableStacktrace bool     `mapstructure:"disable_stacktrace"`
	OutputPaths       []string `mapstructure:"output_paths"`
}

type SettingsConfig struct {
	Path string `mapstructure:"path"`
	Lock bool   `mapstructure:"lock"`
}

type CRCONConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	StatusPath string        `mapstructure:"status_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// StatusURL joins the base URL and the status path.
func (c CRCONConfig) StatusURL() string {
	path := strings.TrimSpace(c.StatusPath)
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(strings.TrimSpace(c.BaseURL), "/") + path
}

type DiscordConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimitRetry bool          `mapstructure:"rate_limit_retry"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

type MonitorConfig struct {
	CheckIntervalFast time.Duration `mapstructure:"check_interval_fast"`
	CheckIntervalSlow time.Duration `mapstructure:"check_interval_slow"`
}

// DefaultsConfig seeds a fresh settings record.
type DefaultsConfig struct {
	ServerName           string         `mapstructure:"server_name"`
	PlayerCountThreshold int            `mapstructure:"player_count_threshold"`
	PlayerCountSeeded    int            `mapstructure:"player_count_seeded"`
	SeedCooldownTime     time.Duration  `mapstructure:"seed_cooldown_time"`
	WebhookURL           string         `mapstructure:"webhook_url"`
	WebhookContent       string         `mapstructure:"webhook_content"`
	AllowedMentions      MentionsConfig `mapstructure:"allowed_mentions"`
	Embed                EmbedConfig    `mapstructure:"embed"`
}

type MentionsConfig struct {
	Parse []string `mapstructure:"parse"`
	Roles []string `mapstructure:"roles"`
	Users []string `mapstructure:"users"`
}

type EmbedConfig struct {
	Title         string `mapstructure:"title"`
	Body          string `mapstructure:"body"`
	Color         string `mapstructure:"color"`
	FooterText    string `mapstructure:"footer_text"`
	FooterIconURL string `mapstructure:"footer_icon_url"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEEDPING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "prod")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("log.output_paths", []string{"stdout"})
	v.SetDefault("settings.path", "config.json")
	v.SetDefault("settings.lock", true)
	v.SetDefault("crcon.base_url", "http://localhost:7010")
	v.SetDefault("crcon.status_path", "/api/public_info")
	v.SetDefault("crcon.timeout", "10s")
	v.SetDefault("discord.timeout", "10s")
	v.SetDefault("discord.rate_limit_retry", true)
	v.SetDefault("discord.max_retries", 1)
	v.SetDefault("monitor.check_interval_fast", "60s")
	v.SetDefault("monitor.check_interval_slow", "600s")
	v.SetDefault("server.http_addr", "")

	v.SetDefault("defaults.server_name", "YOUR_SERVER_NAME")
	v.SetDefault("defaults.player_count_threshold", 5)
	v.SetDefault("defaults.player_count_seeded", 30)
	v.SetDefault("defaults.seed_cooldown_time", "18h")
	v.SetDefault("defaults.webhook_url", "")
	v.SetDefault("defaults.webhook_content", "@here\nHELLO WORLD, I AM AN AUTOMATED SEEDING MESSAGE.")
	v.SetDefault("defaults.allowed_mentions.parse", []string{"roles", "users", "everyone"})
	v.SetDefault("defaults.allowed_mentions.roles", []string{})
	v.SetDefault("defaults.allowed_mentions.users", []string{})
	v.SetDefault("defaults.embed.title", "")
	v.SetDefault("defaults.embed.body", "Hey, we're seeding our server and we could use your help to get it populated!\n\n- Players currently online: **{player_count}**\n- Current map: **{map_name}**")
	v.SetDefault("defaults.embed.color", "03b2f8")
	v.SetDefault("defaults.embed.footer_text", "Made by dr_nylon for the HLL Community.")
	v.SetDefault("defaults.embed.footer_icon_url", "https://avatars.githubusercontent.com/u/37863835")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			// The shipped default path is optional; an explicit one is not.
			if !(path == DefaultPath && errors.Is(err, os.ErrNotExist)) {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
