// Package config defines the process configuration for the home climate
// advisor binaries. Configuration is loaded once at start-up and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Secret files (*_FILE) (Lowest)
//
// Any missing required value or invalid format fails start-up.
package config

import (
	"fmt"
	"time"

	"homeclimate/internal/advisor"
	"homeclimate/internal/mold"
	"homeclimate/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types for credentials.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the sub-config they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"homeclimate"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server   ServerConfig
	Database DatabaseConfig
	Weather  WeatherConfig
	Cache    CacheConfig
	MQTT     MQTTConfig
	Archive  ArchiveConfig
	AWS      AWSConfig
	Advisor  AdvisorConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s" validate:"gt=0"`
	EnableGzip         bool          `envconfig:"HTTP_GZIP" default:"true"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// WeatherConfig holds the outdoor weather upstream settings. With no API key,
// or with Mock set, the deterministic mock provider is used.
type WeatherConfig struct {
	APIKey  SecretString  `envconfig:"OPENWEATHER_API_KEY"`
	BaseURL string        `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/3.0" validate:"url"`
	Timeout time.Duration `envconfig:"WEATHER_TIMEOUT" default:"5s"`
	Mock    bool          `envconfig:"WEATHER_MOCK" default:"false"`

	// CacheTTL bounds how long resolved outdoor conditions are reused.
	CacheTTL time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"10m"`

	DefaultLatitude  float64 `envconfig:"DEFAULT_LATITUDE" default:"43.65" validate:"gte=-90,lte=90"`
	DefaultLongitude float64 `envconfig:"DEFAULT_LONGITUDE" default:"-79.38" validate:"gte=-180,lte=180"`
}

// UseMock reports whether the mock weather provider should be used.
func (w WeatherConfig) UseMock() bool {
	return w.Mock || !w.APIKey.IsSet()
}

// CacheConfig selects the cache backend. An empty RedisURL selects the
// in-process cache.
type CacheConfig struct {
	RedisURL  SecretString `envconfig:"REDIS_URL"`
	KeyPrefix string       `envconfig:"CACHE_KEY_PREFIX" default:"homeclimate:"`
}

// MQTTConfig holds sensor broker settings.
type MQTTConfig struct {
	Broker            string        `envconfig:"MQTT_BROKER" default:"tcp://localhost:1883" validate:"required"`
	ClientID          string        `envconfig:"MQTT_CLIENT_ID" default:"homeclimate-ingest"`
	Username          string        `envconfig:"MQTT_USERNAME"`
	Password          SecretString  `envconfig:"MQTT_PASSWORD"`
	ReadingTopic      string        `envconfig:"MQTT_READING_TOPIC" default:"sensors/+/reading"`
	AdviceTopicPrefix string        `envconfig:"MQTT_ADVICE_TOPIC_PREFIX" default:"advice"`
	QoS               byte          `envconfig:"MQTT_QOS" default:"1" validate:"lte=2"`
	ConnectTimeout    time.Duration `envconfig:"MQTT_CONNECT_TIMEOUT" default:"10s"`

	// EvaluateOnReading re-runs the advisor for a device after each reading.
	EvaluateOnReading bool `envconfig:"MQTT_EVALUATE_ON_READING" default:"false"`
}

// ArchiveConfig enables the ClickHouse reading archive when Addr is set.
type ArchiveConfig struct {
	Addr     string       `envconfig:"CLICKHOUSE_ADDR"`
	Database string       `envconfig:"CLICKHOUSE_DATABASE" default:"homeclimate"`
	Username string       `envconfig:"CLICKHOUSE_USERNAME" default:"default"`
	Password SecretString `envconfig:"CLICKHOUSE_PASSWORD"`
}

// Enabled reports whether an archive address was configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Addr != ""
}

// AWSConfig holds AWS resource identifiers used by the sweeper.
type AWSConfig struct {
	Region          string `envconfig:"AWS_REGION" default:"us-east-1"`
	AlertQueueURL   string `envconfig:"SQS_MOLD_ALERTS" validate:"omitempty,url"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"HomeClimate"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// AdvisorConfig holds household defaults and the heuristic constants of the
// decision core.
type AdvisorConfig struct {
	Timezone           string `envconfig:"HOUSEHOLD_TIMEZONE" default:"America/Toronto" validate:"required"`
	DefaultPlanType    string `envconfig:"DEFAULT_PLAN_TYPE" default:"TOU" validate:"oneof=TOU ULO TIERED"`
	DefaultHousingType string `envconfig:"DEFAULT_HOUSING_TYPE" default:"apartment" validate:"oneof=dorm apartment house basement other"`

	MoldWindow          time.Duration `envconfig:"MOLD_WINDOW" default:"24h" validate:"gt=0"`
	MoldIntervalMinutes int           `envconfig:"MOLD_INTERVAL_MINUTES" default:"1" validate:"gte=1"`
	MoistureBoostPct    float64       `envconfig:"MOISTURE_BOOST_PCT" default:"8" validate:"gte=0,lte=50"`

	ExpensiveCents float64 `envconfig:"PRICE_EXPENSIVE_CENTS" default:"15" validate:"gt=0"`
	CheapCents     float64 `envconfig:"PRICE_CHEAP_CENTS" default:"5" validate:"gte=0,ltfield=ExpensiveCents"`
	VentOvershootC float64 `envconfig:"VENT_OVERSHOOT_C" default:"6" validate:"gte=0"`

	MoldHighTotalMinutes       int `envconfig:"MOLD_HIGH_TOTAL_MINUTES" default:"180" validate:"gt=0"`
	MoldHighConsecutiveMinutes int `envconfig:"MOLD_HIGH_CONSECUTIVE_MINUTES" default:"90" validate:"gt=0"`
	MoldMediumMinutes          int `envconfig:"MOLD_MEDIUM_MINUTES" default:"60" validate:"gt=0"`

	SweepConcurrency int `envconfig:"SWEEP_CONCURRENCY" default:"8" validate:"gte=1,lte=64"`
}

// Location resolves the household time zone.
func (a AdvisorConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading household timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

// Thresholds returns the recommendation engine constants with configured
// overrides applied.
func (a AdvisorConfig) Thresholds() advisor.Thresholds {
	th := advisor.DefaultThresholds()
	th.ExpensiveCents = a.ExpensiveCents
	th.CheapCents = a.CheapCents
	th.MaxOvershootC = a.VentOvershootC
	return th
}

// MoldEngine returns the mold engine with configured thresholds.
func (a AdvisorConfig) MoldEngine() mold.Engine {
	e := mold.DefaultEngine()
	e.HighTotalMinutes = a.MoldHighTotalMinutes
	e.HighConsecutiveMinutes = a.MoldHighConsecutiveMinutes
	e.MediumMinutes = a.MoldMediumMinutes
	return e
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSecretResolution indicates a *_FILE secret reference could not be read.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
