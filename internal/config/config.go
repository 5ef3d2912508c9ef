package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	AIProviderOpenAI = "openai"
	AIProviderGemini = "gemini"

	defaultAIRequestTimeout = 60 * time.Second
	defaultGarminBaseURL    = "https://connectapi.garmin.com"
	defaultGarminSSOURL     = "https://sso.garmin.com/sso"
)

// DefaultWorkoutSystemPrompt is used when the config file does not set workout_system_prompt.
const DefaultWorkoutSystemPrompt = `You are an experienced running coach. Design one structured running workout
for the athlete using their fitness profile, recent activities and health readings.
Respond with JSON only, either a Garmin workout object or {"workout": <Garmin workout>, "explanation": "<why>"}.
The workout must have "workoutName", a "sportType" object ({"sportTypeId": 1, "sportTypeKey": "running"}) and
"workoutSegments" whose first segment has a non-empty "workoutSteps" array. Use the athlete's pace zones
(seconds per km) for step targets.`

type Config struct {
	Environment string
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// storage
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`
	RedisHost      string `toml:"redis_host"`
	RedisPort      string `toml:"redis_port"`

	// browser origins allowed by CORS
	AllowedOrigins []string `toml:"allowed_origins"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// rate limits, per user per minute
	SyncRateLimitPerMin     int `toml:"sync_rate_limit_per_min"`
	GenerateRateLimitPerMin int `toml:"generate_rate_limit_per_min"`

	// fitness profile read cache
	ProfileCacheSizeMB     int `toml:"profile_cache_size_mb"`
	ProfileCacheTTLSeconds int `toml:"profile_cache_ttl_seconds"`

	// garmin
	GarminBaseURL string `toml:"garmin_base_url"`
	GarminSSOURL  string `toml:"garmin_sso_url"`

	// ai
	AIProvider          string   `toml:"ai_provider"`
	AIRequestTimeout    duration `toml:"ai_request_timeout"`
	OpenAIModel         string   `toml:"openai_model"`
	OpenAIBaseURL       string   `toml:"openai_base_url"`
	GeminiModel         string   `toml:"gemini_model"`
	WorkoutSystemPrompt string   `toml:"workout_system_prompt"`
}

// duration lets TOML values like "45s" decode into a time.Duration.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (c *Config) AITimeout() time.Duration {
	if c.AIRequestTimeout.Duration <= 0 {
		return defaultAIRequestTimeout
	}
	return c.AIRequestTimeout.Duration
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9100
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
	if c.PostgresPort == "" {
		c.PostgresPort = "5432"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:8080"}
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
	if c.SyncRateLimitPerMin <= 0 {
		c.SyncRateLimitPerMin = 6
	}
	if c.GenerateRateLimitPerMin <= 0 {
		c.GenerateRateLimitPerMin = 10
	}
	if c.ProfileCacheSizeMB <= 0 {
		c.ProfileCacheSizeMB = 8
	}
	if c.ProfileCacheTTLSeconds <= 0 {
		c.ProfileCacheTTLSeconds = 300
	}
	if c.GarminBaseURL == "" {
		c.GarminBaseURL = defaultGarminBaseURL
	}
	if c.GarminSSOURL == "" {
		c.GarminSSOURL = defaultGarminSSOURL
	}
	if c.AIProvider == "" {
		c.AIProvider = AIProviderOpenAI
	}
	c.AIProvider = strings.ToLower(strings.TrimSpace(c.AIProvider))
	if c.OpenAIModel == "" {
		c.OpenAIModel = "gpt-4o-mini"
	}
	if c.GeminiModel == "" {
		c.GeminiModel = "gemini-2.0-flash"
	}
	if strings.TrimSpace(c.WorkoutSystemPrompt) == "" {
		c.WorkoutSystemPrompt = DefaultWorkoutSystemPrompt
	}
}

func (c *Config) validate() error {
	switch c.AIProvider {
	case AIProviderOpenAI, AIProviderGemini:
	default:
		return fmt.Errorf("unknown ai_provider %q, use %q or %q", c.AIProvider, AIProviderOpenAI, AIProviderGemini)
	}
	if c.PostgresHost == "" || c.PostgresDBName == "" {
		return fmt.Errorf("postgres_host and postgres_db_name must be set")
	}
	return nil
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no [%s] section in config", strings.ToLower(env))
	}
	return cfg, nil
}

// Load reads the TOML file at path and returns the section for env with defaults applied.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return fromToml(&t, env)
}

func Parse(env, content string) (*Config, error) {
	var t Toml
	if _, err := toml.Decode(content, &t); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return fromToml(&t, env)
}

func fromToml(t *Toml, env string) (*Config, error) {
	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	cfg.Environment = strings.ToLower(env)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
