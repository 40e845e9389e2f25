package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth"       validate:"required"`
	LLM        LLMConfig        `mapstructure:"llm"        validate:"required"`
	Task       TaskConfig       `mapstructure:"task"       validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains authentication settings. Account management lives in an
// external service; this service only validates bearer tokens it issued.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`
	// Per-call deadline for one provider request, seconds.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" validate:"gte=0"`
	// Cost estimation rates, USD per 1k tokens.
	PromptCostPer1K     float64 `mapstructure:"prompt_cost_per_1k"     validate:"gte=0"`
	CompletionCostPer1K float64 `mapstructure:"completion_cost_per_1k" validate:"gte=0"`
}

// TaskConfig contains settings for the background task runner.
type TaskConfig struct {
	WorkerCount         int `mapstructure:"worker_count"           validate:"required,gt=0"`
	QueueSize           int `mapstructure:"queue_size"             validate:"required,gt=0"`
	StuckTaskAgeMinutes int `mapstructure:"stuck_task_age_minutes" validate:"required,gt=0"`
}

// GenerationConfig contains the batch-generation orchestration settings.
type GenerationConfig struct {
	// BatchSize is the default number of questions requested per sub-job.
	BatchSize int `mapstructure:"batch_size" validate:"required,gt=0"`
	// MaxAttempts is the total attempt budget per sub-job call (first try
	// plus retries).
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gt=0"`
	// RetryBaseDelaySeconds is the backoff base for transient failures.
	RetryBaseDelaySeconds int `mapstructure:"retry_base_delay_seconds" validate:"required,gt=0"`
	// StaleJobThresholdMinutes is how old a generating section's heartbeat
	// may be before the reaper reclaims it.
	StaleJobThresholdMinutes int `mapstructure:"stale_job_threshold_minutes" validate:"required,gt=0"`
}

// Default values applied when the environment or config file leaves a
// setting unset.
const (
	DefaultServerPort               = 8080
	DefaultLogLevel                 = "info"
	DefaultTokenLifetimeMinutes     = 60
	DefaultModelName                = "gemini-2.0-flash"
	DefaultRequestTimeoutSeconds    = 120
	DefaultWorkerCount              = 2
	DefaultQueueSize                = 100
	DefaultStuckTaskAgeMinutes      = 30
	DefaultBatchSize                = 30
	DefaultMaxAttempts              = 3
	DefaultRetryBaseDelaySeconds    = 2
	DefaultStaleJobThresholdMinutes = 7
)
