package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
		// BaseURL внешний адрес сервиса, попадает в ссылки писем
		BaseURL string `mapstructure:"baseUrl"`
	} `mapstructure:"app"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Firestore struct {
		ProjectID       string `mapstructure:"projectId"`
		CredentialsFile string `mapstructure:"credentialsFile"`
	} `mapstructure:"firestore"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Stripe struct {
		AllowUnverifiedWebhooks bool              `mapstructure:"allowUnverifiedWebhooks"`
		Prices                  map[string]string `mapstructure:"prices"`
	} `mapstructure:"stripe"`
	SMTP struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Sender   string `mapstructure:"sender"`
	} `mapstructure:"smtp"`
	Ledger struct {
		SweepInterval time.Duration `mapstructure:"sweepInterval"`
	} `mapstructure:"ledger"`
	Auth struct {
		JWTSecret string `mapstructure:"jwtSecret"`
	} `mapstructure:"auth"`
}

// LoadConfig загружает конфигурацию из файла или переменных окружения.
// Секреты (ключи Stripe, пароль SMTP) в конфигурационный файл не попадают,
// они читаются через secrets.Provider из окружения.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		err := godotenv.Load(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("app.port", "8080")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("ledger.sweepInterval", 24*time.Hour)

	viper.AutomaticEnv() // Чтение переменных окружения
	_ = viper.BindEnv("app.baseUrl", "APP_BASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
