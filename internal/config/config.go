package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	SignalWire SignalWireConfig
	Dialer     DialerConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for managed-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type SignalWireConfig struct {
	// SpaceURL is the per-account API base, e.g. https://example.signalwire.com
	SpaceURL   string
	ProjectID  string
	APIToken   string
	FromNumber string

	// PublicBaseURL is where the carrier can reach our webhook endpoints.
	PublicBaseURL string

	RequestTimeout time.Duration
	MaxAttempts    int
}

// DialerConfig tunes the outbound queue. The orchestrator never dials more
// concurrently than it has agents to answer; these knobs bound everything else.
type DialerConfig struct {
	BatchSize int

	// TickInterval is how often the dial loop walks active campaigns.
	TickInterval time.Duration

	// DefaultTimezone is the fallback zone for the calling-hours check when
	// an account carries an invalid or unknown timezone.
	DefaultTimezone string

	// Calling window, local hours. Lower inclusive, upper exclusive.
	CallWindowStartHour int
	CallWindowEndHour   int

	// Per-organization ceiling on concurrently placed dials.
	MaxConcurrentDials int
	DialSlotTTL        time.Duration

	// VoicemailScript is spoken when a machine answers. When
	// VoicemailAudioURL is set the recorded file is played instead.
	VoicemailScript   string
	VoicemailAudioURL string
	// HoldScript is spoken to a human when no agent is available.
	HoldScript string

	// VoicemailHangupTimeout bounds how long a voicemail drop may run before
	// the call is forcibly hung up.
	VoicemailHangupTimeout time.Duration
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

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL")

	c.SignalWire.SpaceURL = strings.TrimSpace(os.Getenv("SIGNALWIRE_SPACE_URL"))
	c.SignalWire.ProjectID = strings.TrimSpace(os.Getenv("SIGNALWIRE_PROJECT_ID"))
	c.SignalWire.APIToken = os.Getenv("SIGNALWIRE_API_TOKEN")
	c.SignalWire.FromNumber = strings.TrimSpace(os.Getenv("SIGNALWIRE_FROM_NUMBER"))
	c.SignalWire.PublicBaseURL = strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL"))
	c.SignalWire.RequestTimeout = optDuration("SIGNALWIRE_REQUEST_TIMEOUT")
	c.SignalWire.MaxAttempts = optInt("SIGNALWIRE_MAX_ATTEMPTS")

	c.Dialer.BatchSize = optInt("DIALER_BATCH_SIZE")
	c.Dialer.TickInterval = optDuration("DIALER_TICK_INTERVAL")
	c.Dialer.DefaultTimezone = strings.TrimSpace(os.Getenv("DIALER_DEFAULT_TIMEZONE"))
	c.Dialer.CallWindowStartHour = optInt("DIALER_CALL_WINDOW_START")
	c.Dialer.CallWindowEndHour = optInt("DIALER_CALL_WINDOW_END")
	c.Dialer.MaxConcurrentDials = optInt("DIALER_MAX_CONCURRENT_DIALS")
	c.Dialer.DialSlotTTL = optDuration("DIALER_DIAL_SLOT_TTL")
	c.Dialer.VoicemailScript = strings.TrimSpace(os.Getenv("DIALER_VOICEMAIL_SCRIPT"))
	c.Dialer.VoicemailAudioURL = strings.TrimSpace(os.Getenv("DIALER_VOICEMAIL_AUDIO_URL"))
	c.Dialer.HoldScript = strings.TrimSpace(os.Getenv("DIALER_HOLD_SCRIPT"))
	c.Dialer.VoicemailHangupTimeout = optDuration("DIALER_VOICEMAIL_HANGUP_TIMEOUT")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
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
	if c.DB.SSLMode == "" && c.IsProduction() {
		errs = append(errs, errors.New("DB_SSLMODE is required in production"))
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

	if c.SignalWire.SpaceURL == "" {
		errs = append(errs, errors.New("SIGNALWIRE_SPACE_URL is required"))
	}
	if c.SignalWire.ProjectID == "" {
		errs = append(errs, errors.New("SIGNALWIRE_PROJECT_ID is required"))
	}
	if c.SignalWire.APIToken == "" {
		errs = append(errs, errors.New("SIGNALWIRE_API_TOKEN is required"))
	}
	if c.SignalWire.FromNumber == "" {
		errs = append(errs, errors.New("SIGNALWIRE_FROM_NUMBER is required"))
	}
	if c.SignalWire.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required"))
	}

	if c.Dialer.DefaultTimezone != "" && !isLoadableZone(c.Dialer.DefaultTimezone) {
		errs = append(errs, fmt.Errorf("DIALER_DEFAULT_TIMEZONE is not a loadable zone: %q", c.Dialer.DefaultTimezone))
	}
	if c.Dialer.CallWindowStartHour < 0 || c.Dialer.CallWindowStartHour > 23 {
		errs = append(errs, fmt.Errorf("DIALER_CALL_WINDOW_START must be 0..23, got %d", c.Dialer.CallWindowStartHour))
	}
	if c.Dialer.CallWindowEndHour < 0 || c.Dialer.CallWindowEndHour > 24 {
		errs = append(errs, fmt.Errorf("DIALER_CALL_WINDOW_END must be 0..24, got %d", c.Dialer.CallWindowEndHour))
	}

	return joinErrors(errs)
}

// applyDefaults fills optional knobs after validation passed.
func (c *Config) applyDefaults() {
	if c.DB.SSLMode == "" {
		// Local-friendly default; production must be explicit.
		c.DB.SSLMode = "disable"
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.SignalWire.RequestTimeout <= 0 {
		c.SignalWire.RequestTimeout = 10 * time.Second
	}
	if c.SignalWire.MaxAttempts <= 0 {
		c.SignalWire.MaxAttempts = 3
	}
	if c.Dialer.BatchSize <= 0 {
		c.Dialer.BatchSize = 10
	}
	if c.Dialer.TickInterval <= 0 {
		c.Dialer.TickInterval = 5 * time.Second
	}
	if c.Dialer.DefaultTimezone == "" {
		c.Dialer.DefaultTimezone = "America/New_York"
	}
	if c.Dialer.CallWindowStartHour == 0 && c.Dialer.CallWindowEndHour == 0 {
		c.Dialer.CallWindowStartHour = 8
		c.Dialer.CallWindowEndHour = 21
	}
	if c.Dialer.MaxConcurrentDials <= 0 {
		c.Dialer.MaxConcurrentDials = 25
	}
	if c.Dialer.DialSlotTTL <= 0 {
		c.Dialer.DialSlotTTL = 10 * time.Minute
	}
	if c.Dialer.VoicemailScript == "" {
		c.Dialer.VoicemailScript = "We attempted to reach you regarding an important matter. Please call us back at your convenience."
	}
	if c.Dialer.HoldScript == "" {
		c.Dialer.HoldScript = "Please hold while we connect you to the next available representative."
	}
	if c.Dialer.VoicemailHangupTimeout <= 0 {
		c.Dialer.VoicemailHangupTimeout = 15 * time.Second
	}
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

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optDuration(key string) time.Duration {
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

func isLoadableZone(name string) bool {
	_, err := time.LoadLocation(name)
	return err == nil
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
