package config // package config loads application configuration from environment variables

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; required ones fail Load when missing.
type Config struct {
	Env         string `env:"APP_ENV" envDefault:"dev"`
	Port        string `env:"APP_PORT" envDefault:"8080"`
	BaseURL     string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	UploadDir   string `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUpload   string `env:"MAX_UPLOAD_SIZE" envDefault:"20M"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev      bool   `env:"LOG_DEV"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	DB    DBConfig
	Token TokenConfig
	AMQP  AMQPConfig
	SMTP  SMTPConfig
}

// DBConfig describes the MySQL connection.
type DBConfig struct {
	User string `env:"DB_USER,required,notEmpty"`
	Pass string `env:"DB_PASS"` // empty allowed
	Host string `env:"DB_HOST,required,notEmpty"`
	Port string `env:"DB_PORT" envDefault:"3306"`
	Name string `env:"DB_NAME,required,notEmpty"`
}

// TokenConfig carries the signing secret and token lifetimes.
type TokenConfig struct {
	Secret     string        `env:"JWT_SECRET,required,notEmpty,unset"`
	Issuer     string        `env:"JWT_ISSUER" envDefault:"civic-incident-reporting"`
	AccessTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	ResetTTL   time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"12"`
}

// AMQPConfig points at the broker that carries outbound notifications.
// An empty URL disables the broker and notifications are delivered inline.
type AMQPConfig struct {
	URL   string `env:"RABBITMQ_URL"`
	Queue string `env:"NOTIFY_QUEUE" envDefault:"notifications.email"`
}

// SMTPConfig configures outbound email. When Host is empty messages are
// only logged.
type SMTPConfig struct {
	Host string `env:"SMTP_HOST"`
	Port int    `env:"SMTP_PORT" envDefault:"587"`
	User string `env:"SMTP_USER"`
	Pass string `env:"SMTP_PASS,unset"`
	From string `env:"SMTP_FROM" envDefault:"no-reply@civic.local"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env is fine
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
