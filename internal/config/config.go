package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the dialer processes read from the environment.
// Binaries call godotenv first so a local .env file is honored.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Telephony TelephonyConfig
	Queue     QueueConfig
	Scheduler SchedulerConfig
	Log       LogConfig
}

type AppConfig struct {
	Env  string
	Port int
	// BaseURL is the public origin used to build provider callback URLs.
	BaseURL string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional. Without a host the dialer runs without the
// per-campaign run lock and webhook dedupe.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

// TelephonyConfig holds Twilio credentials. Missing credentials select the
// simulated gateway instead of failing startup.
type TelephonyConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
	APIBaseURL  string
	Timeout     time.Duration

	// ValidateSignature checks X-Twilio-Signature on webhooks.
	ValidateSignature bool
}

type QueueConfig struct {
	URL           string
	DispatchQueue string
}

type SchedulerConfig struct {
	DispatchDelay time.Duration
	RetryDelay    time.Duration
	SweepInterval time.Duration
	// BatchSize caps placements per campaign per sweep; 0 uses remaining capacity.
	BatchSize         int
	MaxRetries        int
	RetryDelayMinutes int
	RecordCalls       bool
}

type LogConfig struct {
	// File enables a rotating JSON log file next to stdout.
	File string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error
	intVal := func(n int, err error) int {
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return n
	}

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port = intVal(mustInt("APP_PORT"))
	c.App.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("APP_BASE_URL")), "/")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = intVal(mustInt("DB_PORT"))
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = intVal(optionalInt("REDIS_PORT", 6379))
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	c.Redis.DB = intVal(optionalInt("REDIS_DB", 0))

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")

	c.Telephony.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Telephony.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Telephony.PhoneNumber = strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER"))
	c.Telephony.APIBaseURL = strings.TrimSpace(os.Getenv("TWILIO_API_BASE_URL"))
	c.Telephony.Timeout = mustDuration("TWILIO_TIMEOUT")
	c.Telephony.ValidateSignature = optionalBool("TWILIO_VALIDATE_SIGNATURE")

	c.Queue.URL = strings.TrimSpace(os.Getenv("RABBITMQ_URL"))
	c.Queue.DispatchQueue = strings.TrimSpace(os.Getenv("DISPATCH_QUEUE"))

	c.Scheduler.DispatchDelay = mustDuration("SCHEDULER_DISPATCH_DELAY")
	c.Scheduler.RetryDelay = mustDuration("SCHEDULER_RETRY_DELAY")
	c.Scheduler.SweepInterval = mustDuration("SCHEDULER_SWEEP_INTERVAL")
	c.Scheduler.BatchSize = intVal(optionalInt("SCHEDULER_BATCH_SIZE", 0))
	c.Scheduler.MaxRetries = intVal(optionalInt("RETRY_MAX_RETRIES", 3))
	c.Scheduler.RetryDelayMinutes = intVal(optionalInt("RETRY_DELAY_MINUTES", 30))
	c.Scheduler.RecordCalls = optionalBool("RECORD_CALLS")

	c.Log.File = strings.TrimSpace(os.Getenv("LOG_FILE"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem at once and fills environment-dependent
// defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.BaseURL == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("APP_BASE_URL is required in production"))
		} else {
			c.App.BaseURL = fmt.Sprintf("http://localhost:%d", c.App.Port)
		}
	} else if u, err := url.Parse(c.App.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("APP_BASE_URL must be an absolute URL, got %q", c.App.BaseURL))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	if c.Telephony.Configured() && c.Telephony.PhoneNumber == "" {
		errs = append(errs, errors.New("TWILIO_PHONE_NUMBER is required when Twilio credentials are set"))
	}
	if c.Telephony.ValidateSignature && c.Telephony.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_VALIDATE_SIGNATURE needs TWILIO_AUTH_TOKEN"))
	}
	if c.Telephony.Timeout <= 0 {
		c.Telephony.Timeout = 15 * time.Second
	}

	if c.Queue.DispatchQueue == "" {
		c.Queue.DispatchQueue = "dialer.dispatch"
	}

	if c.Scheduler.DispatchDelay <= 0 {
		c.Scheduler.DispatchDelay = time.Second
	}
	if c.Scheduler.RetryDelay <= 0 {
		c.Scheduler.RetryDelay = 2 * time.Second
	}
	if c.Scheduler.RetryDelay < c.Scheduler.DispatchDelay {
		errs = append(errs, errors.New("SCHEDULER_RETRY_DELAY must not be shorter than SCHEDULER_DISPATCH_DELAY"))
	}
	if c.Scheduler.SweepInterval <= 0 {
		c.Scheduler.SweepInterval = time.Minute
	}
	if c.Scheduler.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("SCHEDULER_BATCH_SIZE must be >= 0, got %d", c.Scheduler.BatchSize))
	}
	if c.Scheduler.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("RETRY_MAX_RETRIES must be > 0, got %d", c.Scheduler.MaxRetries))
	}
	if c.Scheduler.RetryDelayMinutes < 0 {
		errs = append(errs, fmt.Errorf("RETRY_DELAY_MINUTES must be >= 0, got %d", c.Scheduler.RetryDelayMinutes))
	}

	return joinErrors(errs)
}

// Configured reports whether live Twilio credentials are present.
func (t TelephonyConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != ""
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// PostgresDSN contains the database password; never log it.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisEnabled() bool { return c.Redis.Host != "" }

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c Config) QueueEnabled() bool { return c.Queue.URL != "" }

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}

// mustDuration returns 0 for unset or unparseable values; Validate applies defaults.
func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
