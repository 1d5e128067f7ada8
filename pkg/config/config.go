package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Reddit    RedditConfig
	Scoring   ScoringConfig
	Budget    BudgetConfig
	Cache     CacheConfig
	Analysis  AnalysisConfig
	Batch     BatchConfig
	Server    ServerConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// RedditConfig holds settings for the Reddit ingestion client
type RedditConfig struct {
	BaseURL             string
	UserAgent           string
	Timeout             time.Duration
	MaxAttempts         int
	RetryBaseDelay      time.Duration
	PageDelay           time.Duration
	CommentsMaxItems    int
	PostsMaxItems       int
	CommentsMaxRequests int
	PostsMaxRequests    int
	MaxAgeDays          int
	Verbose             bool
}

// ScoringConfig holds settings for the contradiction scoring pipeline
type ScoringConfig struct {
	GeminiAPIKey         string
	Model                string
	MaxInputChars        int
	InputCostPerMillion  float64
	OutputCostPerMillion float64
}

// BudgetConfig holds the spend ceiling configuration
type BudgetConfig struct {
	Ceiling        float64
	WarningPercent float64
	ResetSchedule  string
}

// CacheConfig holds result cache configuration
type CacheConfig struct {
	Capacity int
	RedisURL string
	Enabled  bool // Redis backend enabled
	TTL      time.Duration
}

// AnalysisConfig holds orchestrator configuration
type AnalysisConfig struct {
	Timeout    time.Duration
	BatchDelay time.Duration
}

// BatchConfig holds configuration for the batch binary
type BatchConfig struct {
	Usernames []string
	Schedule  string
	ExportDir string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
	Host string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string
	Format       string // "json" or "text"
	ScalyrFormat bool   // Enable Scalyr-compatible JSON format
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	PrometheusPort    int
	ServiceName       string
}

const envPrefix = "FLIPCHECK"

// Load loads configuration from .env, environment variables and config file
func Load() (*Config, error) {
	// A missing .env file is fine; real environment variables still apply
	_ = godotenv.Load()

	setDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.flipcheck")
	viper.AddConfigPath("/etc/flipcheck")

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found; this is OK if we have env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Reddit: RedditConfig{
			BaseURL:             getString("reddit_base_url", "https://www.reddit.com"),
			UserAgent:           getString("reddit_user_agent", "flipcheck/0.1 (contradiction analysis)"),
			Timeout:             getDuration("reddit_timeout", 30*time.Second),
			MaxAttempts:         getInt("reddit_max_attempts", 3),
			RetryBaseDelay:      getDuration("reddit_retry_base_delay", time.Second),
			PageDelay:           getDuration("reddit_page_delay", time.Second),
			CommentsMaxItems:    getInt("reddit_comments_max_items", 2000),
			PostsMaxItems:       getInt("reddit_posts_max_items", 1000),
			CommentsMaxRequests: getInt("reddit_comments_max_requests", 50),
			PostsMaxRequests:    getInt("reddit_posts_max_requests", 20),
			MaxAgeDays:          getInt("reddit_max_age_days", 730),
			Verbose:             getBool("reddit_verbose", false),
		},
		Scoring: ScoringConfig{
			GeminiAPIKey:         getString("gemini_api_key", ""),
			Model:                getString("scoring_model", "gemini-2.5-flash"),
			MaxInputChars:        getInt("scoring_max_input_chars", 200000),
			InputCostPerMillion:  getFloat("scoring_input_cost_per_million", 0.30),
			OutputCostPerMillion: getFloat("scoring_output_cost_per_million", 2.50),
		},
		Budget: BudgetConfig{
			Ceiling:        getFloat("budget_ceiling", 50),
			WarningPercent: getFloat("budget_warning_percent", 80),
			ResetSchedule:  getString("budget_reset_schedule", ""),
		},
		Cache: CacheConfig{
			Capacity: getInt("cache_capacity", 500),
			RedisURL: getString("redis_url", ""),
			Enabled:  getString("redis_url", "") != "",
			TTL:      getDuration("cache_ttl", 24*time.Hour),
		},
		Analysis: AnalysisConfig{
			Timeout:    getDuration("analysis_timeout", 5*time.Minute),
			BatchDelay: getDuration("analysis_batch_delay", 2*time.Second),
		},
		Batch: BatchConfig{
			Usernames: getStrings("batch_usernames"),
			Schedule:  getString("batch_schedule", ""),
			ExportDir: getString("batch_export_dir", ""),
		},
		Server: ServerConfig{
			Port: getInt("http_server_port", 8080),
			Host: getString("http_server_host", "0.0.0.0"),
		},
		Logging: LoggingConfig{
			Level:        getString("log_level", "INFO"),
			Format:       getString("log_format", "json"),
			ScalyrFormat: getBool("log_scalyr_format", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:           getBool("telemetry_enabled", false),
			JaegerURL:         getString("jaeger_url", ""),
			PrometheusEnabled: getBool("prometheus_enabled", true),
			PrometheusPort:    getInt("prometheus_port", 9090),
			ServiceName:       getString("service_name", "flipcheck"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("reddit_base_url", "https://www.reddit.com")
	viper.SetDefault("reddit_max_attempts", 3)
	viper.SetDefault("reddit_comments_max_requests", 50)
	viper.SetDefault("reddit_posts_max_requests", 20)
	viper.SetDefault("budget_warning_percent", 80)
	viper.SetDefault("http_server_port", 8080)
	viper.SetDefault("http_server_host", "0.0.0.0")
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("prometheus_port", 9090)
	viper.SetDefault("service_name", "flipcheck")
}

func getString(key, defaultValue string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	// Also check environment variable directly
	if val := os.Getenv(toEnvKey(key)); val != "" {
		return val
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	if val := os.Getenv(toEnvKey(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	if val := os.Getenv(toEnvKey(key)); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	if val := os.Getenv(toEnvKey(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	if val := os.Getenv(toEnvKey(key)); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

// getStrings reads a list either from a yaml sequence or a comma separated env value
func getStrings(key string) []string {
	raw := viper.GetStringSlice(key)
	if len(raw) == 0 {
		if val := os.Getenv(toEnvKey(key)); val != "" {
			raw = strings.Split(val, ",")
		}
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		// Env values arrive as a single comma separated element
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func toEnvKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Reddit.BaseURL == "" {
		return fmt.Errorf("reddit_base_url is required")
	}
	if c.Reddit.UserAgent == "" {
		return fmt.Errorf("reddit_user_agent is required")
	}
	if c.Reddit.MaxAttempts <= 0 || c.Reddit.MaxAttempts > 10 {
		return fmt.Errorf("reddit_max_attempts must be between 1 and 10")
	}
	if c.Reddit.CommentsMaxRequests <= 0 || c.Reddit.PostsMaxRequests <= 0 {
		return fmt.Errorf("reddit max requests must be positive")
	}
	if c.Reddit.CommentsMaxItems <= 0 || c.Reddit.PostsMaxItems <= 0 {
		return fmt.Errorf("reddit max items must be positive")
	}
	if c.Budget.Ceiling < 0 {
		return fmt.Errorf("budget_ceiling must not be negative")
	}
	if c.Budget.WarningPercent < 0 || c.Budget.WarningPercent > 100 {
		return fmt.Errorf("budget_warning_percent must be between 0 and 100")
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache_capacity must be positive")
	}
	return nil
}
