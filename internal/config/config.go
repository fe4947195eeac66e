package config

import (
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	DBUser     string `env:"DB_USER,required"`
	DBPassword string `env:"DB_PASSWORD,required"`
	DBHost     string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName     string `env:"DB_NAME,required"`
	DBPort     string `env:"DB_PORT" envDefault:"3306"`

	GatewayBaseURL string        `env:"GATEWAY_BASE_URL" envDefault:"https://api.iamport.kr"`
	GatewayKey     string        `env:"GATEWAY_API_KEY,required"`
	GatewaySecret  string        `env:"GATEWAY_API_SECRET,required"`
	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`

	CatalogBaseURL string        `env:"CATALOG_BASE_URL,required"`
	CatalogTimeout time.Duration `env:"CATALOG_TIMEOUT" envDefault:"5s"`

	FirebaseProjectID string   `env:"FIREBASE_PROJECT_ID"`
	AdminUIDs         []string `env:"ADMIN_UIDS" envSeparator:","`

	// Reconciliation loop cadence. The missing-payment window must cover at
	// least one full interval or settled charges can slip between scans.
	FailedPurchaseInterval time.Duration `env:"FAILED_PURCHASE_INTERVAL" envDefault:"1m"`
	MissingPaymentInterval time.Duration `env:"MISSING_PAYMENT_INTERVAL" envDefault:"5m"`
	MissingPaymentWindow   time.Duration `env:"MISSING_PAYMENT_WINDOW" envDefault:"30m"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
