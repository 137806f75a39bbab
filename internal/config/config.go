package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Server struct {
	Port string
}

type Database struct {
	URL string
}

type Asaas struct {
	WebhookToken string
}

type ContaAzul struct {
	AuthBaseURL  string
	APIBaseURL   string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// AccessToken is a statically configured fallback credential for
	// deployments that bypass the OAuth flow.
	AccessToken  string
	FinAccountID string
}

type Metrics struct {
	URL          string
	IntervalMs   int
	CommonLabels string
}

type Logs struct {
	LokiURL string
	Level   string
}

type Config struct {
	Env       string
	Server    Server
	Database  Database
	Asaas     Asaas
	ContaAzul ContaAzul
	Metrics   Metrics
	Logs      Logs
}

// Load reads the configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "dev")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ASAAS_WEBHOOK_TOKEN", "changeme")
	v.SetDefault("CONTA_AZUL_API_URL", "https://api.contaazul.com")
	v.SetDefault("METRICS_INTERVAL_MS", 10_000)

	config := &Config{
		Env: v.GetString("ENV"),
		Server: Server{
			Port: v.GetString("SERVER_PORT"),
		},
		Database: Database{
			URL: v.GetString("DATABASE_URL"),
		},
		Asaas: Asaas{
			WebhookToken: v.GetString("ASAAS_WEBHOOK_TOKEN"),
		},
		ContaAzul: ContaAzul{
			AuthBaseURL:  v.GetString("CONTA_AZUL_AUTH_URL"),
			APIBaseURL:   v.GetString("CONTA_AZUL_API_URL"),
			ClientID:     v.GetString("CONTA_AZUL_CLIENT_ID"),
			ClientSecret: v.GetString("CONTA_AZUL_CLIENT_SECRET"),
			RedirectURI:  v.GetString("CONTA_AZUL_REDIRECT_URI"),
			AccessToken:  v.GetString("CONTA_AZUL_ACCESS_TOKEN"),
			FinAccountID: v.GetString("CONTA_AZUL_FIN_ACCOUNT_ID"),
		},
		Metrics: Metrics{
			URL:          v.GetString("METRICS_URL"),
			IntervalMs:   v.GetInt("METRICS_INTERVAL_MS"),
			CommonLabels: v.GetString("METRICS_COMMON_LABELS"),
		},
		Logs: Logs{
			LokiURL: v.GetString("LOKI_URL"),
			Level:   v.GetString("LOG_LEVEL"),
		},
	}

	return config, nil
}

func MustLoad() *Config {
	config, err := Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return config
}
