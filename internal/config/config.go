package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration required by the API process.
// All values must come from env (or a .env file loaded by main).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Twilio  TwilioConfig
	Billing BillingConfig
	Storage StorageConfig
	Whisper WhisperConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicBaseURL is the externally reachable origin Twilio uses for callbacks,
	// e.g. https://api.example.com (no trailing slash).
	PublicBaseURL string
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

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	// NumberCacheTTL bounds how long a number lookup may be served from cache.
	NumberCacheTTL time.Duration
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
}

// BillingConfig carries the values injected into usage computations.
type BillingConfig struct {
	Currency          string
	RatePerMinute     decimal.Decimal
	PlanFreeMinutes   int
	NumberMonthlyCost decimal.Decimal
}

// StorageConfig is optional. When Bucket is empty whisper audio is stored inline in Postgres.
type StorageConfig struct {
	Bucket     string
	Region     string
	Prefix     string
	PresignTTL time.Duration
}

type WhisperConfig struct {
	MaxAudioBytes int64
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	{
		n, err := optionalInt("REDIS_DB", 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.DB = n
	}
	c.Redis.NumberCacheTTL = mustDuration("NUMBER_CACHE_TTL")

	c.Auth = readAuth()

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")

	c.Billing.Currency = strings.ToUpper(strings.TrimSpace(os.Getenv("BILLING_CURRENCY")))
	{
		d, err := optionalDecimal("BILLING_RATE_PER_MINUTE")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Billing.RatePerMinute = d
	}
	{
		n, err := optionalInt("BILLING_FREE_MINUTES", -1)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Billing.PlanFreeMinutes = n
	}
	{
		d, err := optionalDecimal("NUMBER_MONTHLY_COST")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Billing.NumberMonthlyCost = d
	}

	c.Storage.Bucket = strings.TrimSpace(os.Getenv("S3_BUCKET"))
	c.Storage.Region = strings.TrimSpace(os.Getenv("S3_REGION"))
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(os.Getenv("S3_PREFIX")), "/")
	c.Storage.PresignTTL = mustDuration("S3_PRESIGN_TTL")

	{
		n, err := optionalInt("WHISPER_MAX_AUDIO_BYTES", 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Whisper.MaxAudioBytes = int64(n)
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
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
	if c.App.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required"))
	} else if u, err := url.Parse(c.App.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL must be an absolute URL, got %q", c.App.PublicBaseURL))
	} else if c.IsProduction() && u.Scheme != "https" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL must use https in production"))
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
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("REDIS_DB must not be negative, got %d", c.Redis.DB))
	}
	if c.Redis.NumberCacheTTL <= 0 {
		c.Redis.NumberCacheTTL = 5 * time.Minute
	}

	errs = append(errs, c.Auth.validate(c.IsProduction())...)

	if c.IsProduction() {
		if c.Twilio.AccountSID == "" {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required in production"))
		}
		if c.Twilio.AuthToken == "" {
			errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required in production"))
		}
	}

	if c.Billing.Currency == "" {
		c.Billing.Currency = "USD"
	}
	if c.Billing.RatePerMinute.IsZero() {
		c.Billing.RatePerMinute = decimal.RequireFromString("0.0085")
	}
	if c.Billing.RatePerMinute.IsNegative() {
		errs = append(errs, errors.New("BILLING_RATE_PER_MINUTE must not be negative"))
	}
	if c.Billing.PlanFreeMinutes < 0 {
		c.Billing.PlanFreeMinutes = 100
	}
	if c.Billing.NumberMonthlyCost.IsZero() {
		c.Billing.NumberMonthlyCost = decimal.RequireFromString("1.15")
	}

	if c.Storage.Bucket != "" && c.Storage.Region == "" {
		errs = append(errs, errors.New("S3_REGION is required when S3_BUCKET is set"))
	}
	if c.Storage.PresignTTL <= 0 {
		c.Storage.PresignTTL = 15 * time.Minute
	}

	if c.Whisper.MaxAudioBytes <= 0 {
		c.Whisper.MaxAudioBytes = 5 << 20
	}

	return joinErrors(errs)
}

// LoadAuth reads only the JWT settings, for tools that mint tokens without
// the rest of the API's dependencies.
func LoadAuth() (AuthConfig, error) {
	a := readAuth()
	if err := joinErrors(a.validate(false)); err != nil {
		return AuthConfig{}, err
	}
	return a, nil
}

func readAuth() AuthConfig {
	return AuthConfig{
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTIssuer:   strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		JWTAudience: strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
		// Duration env vars are optional; defaults applied in validate().
		AccessTokenTTL:  mustDuration("JWT_ACCESS_TTL"),
		RefreshTokenTTL: mustDuration("JWT_REFRESH_TTL"),
	}
}

func (a *AuthConfig) validate(production bool) []error {
	var errs []error
	if a.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if production {
		if a.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if a.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if a.AccessTokenTTL <= 0 {
		a.AccessTokenTTL = 15 * time.Minute
	}
	if a.RefreshTokenTTL <= 0 {
		a.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if a.RefreshTokenTTL <= a.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
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

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// S3Enabled reports whether whisper audio goes to object storage.
func (c Config) S3Enabled() bool {
	return c.Storage.Bucket != ""
}

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
		return def, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalDecimal(key string) (decimal.Decimal, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal, got %q", key, v)
	}
	return d, nil
}

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

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
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
