package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ESI      ESI      `mapstructure:"esi"`
	Trading  Trading  `mapstructure:"trading"`
	Catalog  Catalog  `mapstructure:"catalog"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// ESI holds the configuration for the EVE Online ESI API and SSO.
type ESI struct {
	BaseURL        string  `mapstructure:"base_url"`
	TokenURL       string  `mapstructure:"token_url"`
	ClientID       string  `mapstructure:"client_id"`
	ClientSecret   string  `mapstructure:"client_secret"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Server holds the configuration for the report web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Trading holds the trading settings applied to a character that has no
// saved settings of its own.
type Trading struct {
	TraderID      int64   `mapstructure:"trader_id"`
	BrokerFeeBuy  float64 `mapstructure:"broker_fee_buy"`
	BrokerFeeSell float64 `mapstructure:"broker_fee_sell"`
	SalesTax      float64 `mapstructure:"sales_tax"`
}

// Catalog holds the configuration for the static item catalog import.
type Catalog struct {
	TypesURL string `mapstructure:"types_url"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("esi.base_url", "https://esi.evetech.net/latest")
	viper.SetDefault("esi.token_url", "https://login.eveonline.com/v2/oauth/token")
	viper.SetDefault("esi.rate_limit", 10) // requests per second
	viper.SetDefault("esi.rate_limit_burst", 2)
	viper.SetDefault("trading.broker_fee_buy", 3.00)
	viper.SetDefault("trading.broker_fee_sell", 3.00)
	viper.SetDefault("trading.sales_tax", 7.50)
	viper.SetDefault("catalog.types_url", "https://www.fuzzwork.co.uk/dump/latest/invTypes.csv")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
