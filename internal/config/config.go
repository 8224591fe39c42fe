package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Конфигурация сервиса записи сотрудников.
type Config struct {
	Server struct {
		GRPCAddr string `mapstructure:"grpc_addr"` // :50051
		HTTPAddr string `mapstructure:"http_addr"` // :8080, healthz/readyz
	} `mapstructure:"server"`

	Logging struct {
		Level  string `mapstructure:"level"`  // trace|debug|info|warning|error|fatal
		Format string `mapstructure:"format"` // text|json
		File   string `mapstructure:"file"`   // путь/префикс файла, пусто: только stdout
	} `mapstructure:"logs"`

	Database DBConfig `mapstructure:"database"`

	Auth struct {
		JWTSecret      string        `mapstructure:"jwt_secret"`
		AccessTTL      time.Duration `mapstructure:"access_ttl"`
		RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
		PinPepper      string        `mapstructure:"pin_pepper"` // base64
		MaxPinAttempts int           `mapstructure:"max_pin_attempts"`
	} `mapstructure:"auth"`

	Org struct {
		TimeZone string `mapstructure:"timezone"`
	} `mapstructure:"org"`

	Telemetry struct {
		ServiceName string `mapstructure:"service_name"`
	} `mapstructure:"telemetry"`
}

// Load читает конфиг из env/файла с дефолтами.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.grpc_addr", ":50051")
	v.SetDefault("server.http_addr", ":8080")

	v.SetDefault("logs.level", "info")
	v.SetDefault("logs.format", "text")
	v.SetDefault("logs.file", "")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "booking")
	v.SetDefault("database.password", "booking")
	v.SetDefault("database.name", "booking_db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_min", 30)

	v.SetDefault("auth.jwt_secret", "CHANGE_ME")
	v.SetDefault("auth.access_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_ttl", 30*24*time.Hour)
	v.SetDefault("auth.pin_pepper", "")
	v.SetDefault("auth.max_pin_attempts", 5)

	v.SetDefault("org.timezone", "Asia/Tokyo")
	v.SetDefault("telemetry.service_name", "staff-booking")

	// Файл опционален.
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/staff-booking")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// OrgLocation: часовой пояс организации, в котором живут локальные даты слотов.
func (c *Config) OrgLocation() (*time.Location, error) {
	return time.LoadLocation(c.Org.TimeZone)
}

// PepperBytes декодирует перец для PIN-хэшей.
func (c *Config) PepperBytes() ([]byte, error) {
	if c.Auth.PinPepper == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(c.Auth.PinPepper)
}

func validate(c *Config) error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" || c.Auth.JWTSecret == "CHANGE_ME" {
		return errors.New("auth.jwt_secret must be set (not empty and not CHANGE_ME)")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("auth.access_ttl and auth.refresh_ttl must be positive")
	}
	if c.Auth.MaxPinAttempts <= 0 {
		return errors.New("auth.max_pin_attempts must be positive")
	}
	if strings.TrimSpace(c.Server.GRPCAddr) == "" {
		return errors.New("server.grpc_addr must not be empty")
	}
	if _, err := c.OrgLocation(); err != nil {
		return fmt.Errorf("org.timezone: %w", err)
	}
	if _, err := c.PepperBytes(); err != nil {
		return fmt.Errorf("auth.pin_pepper must be base64: %w", err)
	}
	return c.Database.validate()
}
