package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take precedence
// and use the EXAMGEN_ prefix with underscores for nesting, e.g.
// EXAMGEN_DATABASE_URL, EXAMGEN_LLM_GEMINI_API_KEY.
// Returns a populated Config or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the environment can carry everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("EXAMGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without real defaults still need to be registered so AutomaticEnv
	// can bind them during Unmarshal.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.prompt_cost_per_1k", 0.0)
	v.SetDefault("llm.completion_cost_per_1k", 0.0)

	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.log_level", DefaultLogLevel)
	v.SetDefault("auth.token_lifetime_minutes", DefaultTokenLifetimeMinutes)
	v.SetDefault("llm.model_name", DefaultModelName)
	v.SetDefault("llm.request_timeout_seconds", DefaultRequestTimeoutSeconds)
	v.SetDefault("task.worker_count", DefaultWorkerCount)
	v.SetDefault("task.queue_size", DefaultQueueSize)
	v.SetDefault("task.stuck_task_age_minutes", DefaultStuckTaskAgeMinutes)
	v.SetDefault("generation.batch_size", DefaultBatchSize)
	v.SetDefault("generation.max_attempts", DefaultMaxAttempts)
	v.SetDefault("generation.retry_base_delay_seconds", DefaultRetryBaseDelaySeconds)
	v.SetDefault("generation.stale_job_threshold_minutes", DefaultStaleJobThresholdMinutes)
}
