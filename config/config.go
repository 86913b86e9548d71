package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/angas/spotprice-go/logging"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int `validate:"min=1,max=65535"`
}

type AppConfigEnergyPrice struct {
	Area     string `mapstructure:"area" validate:"required"` // Market area, e.g. "LV", "EE", "SE3"
	Currency string `mapstructure:"currency" validate:"required,len=3"`
	// IANA zone the price windows are expressed in
	Timezone string `mapstructure:"timezone" validate:"required"`
	// Price sources in order of preference: "nordpool", "elprisetjustnu"
	Sources []string `mapstructure:"sources" validate:"min=1,dive,oneof=nordpool elprisetjustnu"`
	// Base URL of the Nord Pool data portal API, mostly useful for testing
	Endpoint          string `mapstructure:"endpoint" validate:"required,url"`
	FetchIntervalMin  int    `mapstructure:"fetch_interval_min" validate:"min=1"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec" validate:"min=1"`
	// Periodic refresh can be turned off, the fetch endpoint keeps working
	Periodic bool `mapstructure:"periodic"`
}

func (e AppConfigEnergyPrice) GetFetchInterval() time.Duration {
	return time.Duration(e.FetchIntervalMin) * time.Minute
}

func (e AppConfigEnergyPrice) GetRequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutSec) * time.Second
}

type AppConfigStore struct {
	// JSON file holding the latest snapshot
	Path string `mapstructure:"path"`
	// Reload the file when another process replaces it
	Watch bool `mapstructure:"watch"`
}

type AppConfigDatabase struct {
	Path string `validate:"required"`
	// How many days of fetch history should be kept, default: 30
	HistoryRetentionDays *int `mapstructure:"history_retention_days"`
}

func (d AppConfigDatabase) GetHistoryRetentionDays() int {
	if d.HistoryRetentionDays == nil {
		return 30
	}
	return *d.HistoryRetentionDays
}

type AppConfigMqtt struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	ClientId    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat != nil && strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Api         AppConfigApi
	EnergyPrice AppConfigEnergyPrice `mapstructure:"energy_price"`
	Store       AppConfigStore       `mapstructure:"store"`
	Database    AppConfigDatabase    `mapstructure:"database"`
	Mqtt        AppConfigMqtt        `mapstructure:"mqtt"`
	Logging     AppConfigLogging     `mapstructure:"logging"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.address", "0.0.0.0")
	v.SetDefault("api.port", 5000)
	v.SetDefault("energy_price.area", "LV")
	v.SetDefault("energy_price.currency", "EUR")
	v.SetDefault("energy_price.timezone", "Europe/Riga")
	v.SetDefault("energy_price.sources", []string{"nordpool"})
	v.SetDefault("energy_price.endpoint", "https://dataportal-api.nordpoolgroup.com")
	v.SetDefault("energy_price.fetch_interval_min", 60)
	v.SetDefault("energy_price.request_timeout_sec", 10)
	v.SetDefault("energy_price.periodic", true)
	v.SetDefault("store.path", "/data/data.json")
	v.SetDefault("store.watch", true)
	v.SetDefault("database.path", "/data/spotprice.db")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "spotprice")
	v.SetDefault("mqtt.topic_prefix", "spotprice")
}

var envOnlyKeys = []string{
	"mqtt.host",
	"mqtt.username",
	"mqtt.password",
	"database.history_retention_days",
	"logging.db_level",
	"logging.db_attrs_format",
	"logging.db_max_entries",
	"logging.console_level",
}

// Environment names used by earlier fetcher deployments.
var legacyEnv = map[string]string{
	"api.port":                         "FETCHER_PORT",
	"store.path":                       "FETCHER_DATA_FILE",
	"energy_price.fetch_interval_min":  "FETCH_INTERVAL_MIN",
	"energy_price.request_timeout_sec": "REQUEST_TIMEOUT_SEC",
}

// Load reads the optional config file at path (or config/config.yaml),
// then environment variables, including a .env file in the working
// directory. Environment wins over the file.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("unable to read .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default are unknown to AutomaticEnv, bind them by name.
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, fmt.Errorf("unable to bind env for %s: %w", key, err)
		}
	}

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("unable to bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &c, nil
}
