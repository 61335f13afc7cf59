package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,       default=8080"`
	Env       string `env:"ENV,        default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	// AppBaseURL is the public origin used in reset links and
	// post-payment redirects.
	AppBaseURL string `env:"APP_BASE_URL, default=http://localhost:8080"`

	Mongo   MongoConfig
	Redis   RedisConfig
	PayApp  PayAppConfig
	Payment PaymentConfig
	Mail    MailConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=technotronz"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// PayAppConfig configures the opaque external payment gateway.
type PayAppConfig struct {
	BaseURL      string `env:"PAYAPP_BASE_URL, default=https://cms.psgps.edu.in/payappapi_test/PayAppapi"`
	ClientID     string `env:"PAYAPP_CLIENT_ID"`
	ClientSecret string `env:"PAYAPP_CLIENT_SECRET"`
	// ReturnToken is the short caller identifier the gateway echoes
	// back (max 15 chars per the gateway docs).
	ReturnToken string `env:"PAYAPP_RETURN_TOKEN, default=technotronz26"`
	Provider    string `env:"PAYAPP_PROVIDER,     default=2"`
}

// PaymentConfig holds payment-flow settings. Mode is read once here and
// injected into the payment service — never re-read from the
// environment elsewhere.
type PaymentConfig struct {
	// Mode is "live" or "mock"; mock settles intents synchronously
	// without the gateway, for testing.
	Mode string `env:"PAYMENT_MODE, default=live"`
}

func (p PaymentConfig) MockMode() bool {
	return p.Mode == "mock"
}

type MailConfig struct {
	// Driver selects the mailer: "dev" logs reset links instead of
	// sending them; "mailersend" delivers for real.
	Driver    string `env:"MAIL_DRIVER, default=dev"`
	APIKey    string `env:"MAILERSEND_API_KEY"`
	FromEmail string `env:"MAIL_FROM_EMAIL, default=noreply@technotronz.in"`
	FromName  string `env:"MAIL_FROM_NAME,  default=TechnoTronz"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
