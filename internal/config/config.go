package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable. Required values are enforced at startup:
// a missing AUTH_SECRET is a configuration error that halts the process,
// never a runtime 500, and there is no built-in fallback secret.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	AuthSecret     string // secret signing session tokens; rotating it invalidates every outstanding session
	SessionTTLDays int    // session cookie time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	AppBaseURL     string // public base URL embedded in mailed links
	AmqpURL        string // broker URL for the mail queue (optional, localhost default)
	SMTPHost       string // outbound mail relay host (optional; empty disables the consumer)
	SMTPPort       int    // outbound mail relay port
	SMTPFrom       string // sender address and SMTP auth user
	SMTPPassword   string // SMTP auth password
}

// Production reports whether the service runs in the prod environment.
// It decides the Secure attribute on the session cookie.
func (c Config) Production() bool { return c.Env == "prod" }

// Load reads configuration from environment variables. Missing required
// variables cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		AuthSecret:     must("AUTH_SECRET"),
		SessionTTLDays: optInt("SESSION_TTL_DAYS", 7),
		BcryptCost:     mustInt("BCRYPT_COST"),
		AppBaseURL:     must("APP_BASE_URL"),
		AmqpURL:        os.Getenv("RABBITMQ_URL"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       optInt("SMTP_PORT", 587),
		SMTPFrom:       os.Getenv("SMTP_FROM"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an
// integer. If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// optInt reads an optional integer variable, falling back to def when
// unset or unparseable.
func optInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
