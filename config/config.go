package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/spf13/viper"
)

var clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type Config struct {
	Env string

	TelegramToken  string
	TelegramChatID int64

	Store        string // "sqlite" or "json"
	DatabasePath string
	DataDir      string

	Timezone    *time.Location
	MorningTime string
	EveningTime string

	ServerPort  string
	APIUsername string
	APIPassword string

	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string
	CalDAVAlarm    time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("STORE", "sqlite")
	v.SetDefault("DATABASE_PATH", "./data/medreminder.db")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("TIMEZONE", "Europe/Moscow")
	v.SetDefault("MORNING_TIME", "09:00")
	v.SetDefault("EVENING_TIME", "21:00")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("CALDAV_ALARM_MINUTES", 10)
}

// Load reads configuration from the environment. CONFIG_FILE may point to a
// yaml or .env file with the same keys; environment variables win over it.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	// Бот опционален: без токена работает только API
	var chatID int64
	if raw := v.GetString("TELEGRAM_CHAT_ID"); raw != "" {
		id := v.GetInt64("TELEGRAM_CHAT_ID")
		if id == 0 {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be a number")
		}
		chatID = id
	}

	store := v.GetString("STORE")
	if store != "sqlite" && store != "json" {
		return nil, fmt.Errorf("STORE must be sqlite or json, got %q", store)
	}

	tz, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	morning := v.GetString("MORNING_TIME")
	evening := v.GetString("EVENING_TIME")
	for name, val := range map[string]string{"MORNING_TIME": morning, "EVENING_TIME": evening} {
		if !clockRe.MatchString(val) {
			return nil, fmt.Errorf("%s must be HH:MM, got %q", name, val)
		}
	}

	cfg := &Config{
		Env:            v.GetString("APP_ENV"),
		TelegramToken:  v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: chatID,
		Store:          store,
		DatabasePath:   v.GetString("DATABASE_PATH"),
		DataDir:        v.GetString("DATA_DIR"),
		Timezone:       tz,
		MorningTime:    morning,
		EveningTime:    evening,
		ServerPort:     v.GetString("SERVER_PORT"),
		APIUsername:    v.GetString("API_USERNAME"),
		APIPassword:    v.GetString("API_PASSWORD"),
		CalDAVURL:      v.GetString("CALDAV_URL"),
		CalDAVUsername: v.GetString("CALDAV_USERNAME"),
		CalDAVPassword: v.GetString("CALDAV_PASSWORD"),
		CalDAVCalendar: v.GetString("CALDAV_CALENDAR"),
		CalDAVAlarm:    time.Duration(v.GetInt("CALDAV_ALARM_MINUTES")) * time.Minute,
	}

	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	return cfg, nil
}

// BotEnabled reports whether the Telegram side should start
func (c *Config) BotEnabled() bool {
	return c.TelegramToken != ""
}

// IsAllowedChat restricts the bot to its owner's chat
func (c *Config) IsAllowedChat(chatID int64) bool {
	return chatID == c.TelegramChatID
}
