package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultPath = "conf/botconfig.json"

	HostDiscord = "discord"
	HostRelay   = "relay"

	EnvDiscordToken = "DISCORD_TOKEN"
	EnvRelayToken   = "RELAY_TOKEN"
	EnvHost         = "KINGDOMBOT_HOST"
	EnvMetricsAddr  = "KINGDOMBOT_METRICS_ADDR"
	EnvLogLevel     = "KINGDOMBOT_LOG_LEVEL"
)

// Config — итоговые настройки бота: файл + переменные окружения.
type Config struct {
	Host          string        `validate:"oneof=discord relay"`
	Prefix        string        `validate:"required,max=8"`
	GuildID       string        `validate:"omitempty,numeric"`
	ReplyTimeout  time.Duration `validate:"min=1s"`
	SweepInterval time.Duration `validate:"min=10ms,ltefield=ReplyTimeout"`
	RelayURL      string        `validate:"required_if=Host relay,omitempty,url"`
	MetricsAddr   string        `validate:"omitempty,hostname_port"`
	LogLevel      string        `validate:"oneof=debug info warn error"`
	LogFormat     string        `validate:"oneof=text json"`

	// секреты только из окружения
	Token      string `validate:"required_if=Host discord"`
	RelayToken string
}

// fileConfig — как лежит на диске (conf/botconfig.json).
type fileConfig struct {
	Host          string `json:"host"`
	Prefix        string `json:"prefix"`
	GuildID       string `json:"guild_id"`
	ReplyTimeout  string `json:"reply_timeout"`  // "60s"
	SweepInterval string `json:"sweep_interval"` // "1s"
	RelayURL      string `json:"relay_url"`
	MetricsAddr   string `json:"metrics_addr"`
	LogLevel      string `json:"log_level"`
	LogFormat     string `json:"log_format"`
}

func Default() Config {
	return Config{
		Host:          HostDiscord,
		Prefix:        "!",
		ReplyTimeout:  60 * time.Second,
		SweepInterval: time.Second,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// LoadDotEnv подхватывает .env, если он есть.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load читает JSON (отсутствующий файл = значения по умолчанию),
// накладывает окружение и валидирует результат.
func Load(path string) (Config, error) {
	cfg := Default()

	var fc fileConfig
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(b, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := fc.apply(&cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (fc fileConfig) apply(cfg *Config) error {
	setString(&cfg.Host, fc.Host)
	setString(&cfg.Prefix, fc.Prefix)
	setString(&cfg.GuildID, fc.GuildID)
	setString(&cfg.RelayURL, fc.RelayURL)
	setString(&cfg.MetricsAddr, fc.MetricsAddr)
	setString(&cfg.LogLevel, strings.ToLower(fc.LogLevel))
	setString(&cfg.LogFormat, strings.ToLower(fc.LogFormat))

	if err := setDuration(&cfg.ReplyTimeout, fc.ReplyTimeout); err != nil {
		return fmt.Errorf("reply_timeout: %w", err)
	}
	if err := setDuration(&cfg.SweepInterval, fc.SweepInterval); err != nil {
		return fmt.Errorf("sweep_interval: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Token = strings.TrimSpace(os.Getenv(EnvDiscordToken))
	cfg.RelayToken = strings.TrimSpace(os.Getenv(EnvRelayToken))
	setString(&cfg.Host, os.Getenv(EnvHost))
	setString(&cfg.MetricsAddr, os.Getenv(EnvMetricsAddr))
	setString(&cfg.LogLevel, strings.ToLower(os.Getenv(EnvLogLevel)))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate возвращает ошибку с перечнем всех неверных полей.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch {
	case fe.Field() == "Token":
		return EnvDiscordToken + " is not set"
	case fe.Param() != "":
		return fmt.Sprintf("%s failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s (got %v)", fe.Field(), fe.Tag(), fe.Value())
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
