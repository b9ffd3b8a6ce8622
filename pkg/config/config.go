package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds engine configuration loaded from the environment, .env files or config.yaml.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`
	PublicOrigin    string        `mapstructure:"PUBLIC_ORIGIN" validate:"required,url"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseURL string `mapstructure:"DATABASE_URL" validate:"required,url|uri"`

	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"required,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AsynqConcurrency int `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`
	GoMaxProcs       int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`

	// JWTSecret verifies access tokens issued by the auth provider.
	JWTSecret string `mapstructure:"JWT_SECRET"`

	OpenAIAPIKey       string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `mapstructure:"OPENAI_BASE_URL" validate:"omitempty,url"`
	PlanModel          string        `mapstructure:"LLM_PLAN_MODEL" validate:"required"`
	ArchitectModel     string        `mapstructure:"LLM_ARCHITECT_MODEL" validate:"required"`
	CodegenModel       string        `mapstructure:"LLM_CODEGEN_MODEL" validate:"required"`
	SimulatedLatency   time.Duration `mapstructure:"SIMULATED_LATENCY"`
	PlanLatency        time.Duration `mapstructure:"PLAN_SIMULATED_LATENCY"`
	StepTimeout        time.Duration `mapstructure:"STEP_TIMEOUT" validate:"required"`
	HealthCheckTimeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT" validate:"required"`

	// RunStaleAfter is how long a running run may go without progress
	// before it can be resumed.
	RunStaleAfter time.Duration `mapstructure:"RUN_STALE_AFTER" validate:"required"`

	GitHubPAT    string `mapstructure:"GITHUB_PAT"`
	GitHubAPIURL string `mapstructure:"GITHUB_API_URL" validate:"omitempty,url"`

	VercelToken  string `mapstructure:"VERCEL_ACCESS_TOKEN"`
	VercelAPIURL string `mapstructure:"VERCEL_API_URL" validate:"required,url"`

	StripeSecretKey string `mapstructure:"STRIPE_SECRET_KEY"`

	// Forwarded to deployed projects as environment variables.
	SupabaseURL            string `mapstructure:"SUPABASE_URL"`
	SupabaseAnonKey        string `mapstructure:"SUPABASE_ANON_KEY"`
	SupabaseServiceRoleKey string `mapstructure:"SUPABASE_SERVICE_ROLE_KEY"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

var keys = []string{
	"APP_ENV",
	"HTTP_ADDR",
	"SHUTDOWN_TIMEOUT",
	"PUBLIC_ORIGIN",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"DATABASE_URL",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"ASYNQ_CONCURRENCY",
	"GOMAXPROCS",
	"JWT_SECRET",
	"OPENAI_API_KEY",
	"OPENAI_BASE_URL",
	"LLM_PLAN_MODEL",
	"LLM_ARCHITECT_MODEL",
	"LLM_CODEGEN_MODEL",
	"SIMULATED_LATENCY",
	"PLAN_SIMULATED_LATENCY",
	"STEP_TIMEOUT",
	"HEALTH_CHECK_TIMEOUT",
	"RUN_STALE_AFTER",
	"GITHUB_PAT",
	"GITHUB_API_URL",
	"VERCEL_ACCESS_TOKEN",
	"VERCEL_API_URL",
	"STRIPE_SECRET_KEY",
	"SUPABASE_URL",
	"SUPABASE_ANON_KEY",
	"SUPABASE_SERVICE_ROLE_KEY",
}

var durationKeys = map[string]func(*Config, time.Duration){
	"SHUTDOWN_TIMEOUT":       func(c *Config, d time.Duration) { c.ShutdownTimeout = d },
	"SIMULATED_LATENCY":      func(c *Config, d time.Duration) { c.SimulatedLatency = d },
	"PLAN_SIMULATED_LATENCY": func(c *Config, d time.Duration) { c.PlanLatency = d },
	"RUN_STALE_AFTER":        func(c *Config, d time.Duration) { c.RunStaleAfter = d },
	"STEP_TIMEOUT":           func(c *Config, d time.Duration) { c.StepTimeout = d },
	"HEALTH_CHECK_TIMEOUT":   func(c *Config, d time.Duration) { c.HealthCheckTimeout = d },
}

// Load reads .env files, applies defaults, binds env vars and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("PUBLIC_ORIGIN", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("GOMAXPROCS", 0)
	v.SetDefault("LLM_PLAN_MODEL", "gpt-4o")
	v.SetDefault("LLM_ARCHITECT_MODEL", "gpt-4-turbo-preview")
	v.SetDefault("LLM_CODEGEN_MODEL", "gpt-4o")
	v.SetDefault("SIMULATED_LATENCY", "1500ms")
	v.SetDefault("PLAN_SIMULATED_LATENCY", "2s")
	v.SetDefault("RUN_STALE_AFTER", "10m")
	v.SetDefault("STEP_TIMEOUT", "60s")
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
	v.SetDefault("VERCEL_API_URL", "https://api.vercel.com")

	_ = v.ReadInConfig()

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	for key, set := range durationKeys {
		s := v.GetString(key)
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		set(&c, d)
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}

// ProjectEnv returns the variables forwarded to every deployed project.
// Empty values are left in; the deployment adapter skips them.
func (c *Config) ProjectEnv() map[string]string {
	return map[string]string{
		"NEXT_PUBLIC_SUPABASE_URL":      c.SupabaseURL,
		"NEXT_PUBLIC_SUPABASE_ANON_KEY": c.SupabaseAnonKey,
		"SUPABASE_SERVICE_ROLE_KEY":     c.SupabaseServiceRoleKey,
		"OPENAI_API_KEY":                c.OpenAIAPIKey,
	}
}
