package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment variables, e.g. CALLSCRIBE_DATABASE_URL.
const envPrefix = "CALLSCRIBE"

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take precedence
// over values from the config file, and both override the built-in defaults.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file; absence is not an error.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables with the CALLSCRIBE_ prefix; nested keys use
	// underscores (server.log_level -> CALLSCRIBE_SERVER_LOG_LEVEL).
	v.SetEnvPrefix(envPrefix)
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

// setDefaults registers the default value for every known key. Registering
// the key also makes viper consider its environment variable during
// AutomaticEnv lookups.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("transcription.worker_count", 5)
	v.SetDefault("transcription.queue_size", 100)
	v.SetDefault("transcription.submit_delay_ms", 1000)
	v.SetDefault("transcription.retry_base_delay_ms", 2000)
	v.SetDefault("transcription.max_attempts", 3)
	v.SetDefault("transcription.mode", "mock")
	v.SetDefault("transcription.mock_transcriber.min_duration_ms", 2000)
	v.SetDefault("transcription.mock_transcriber.max_duration_ms", 10000)
	v.SetDefault("transcription.mock_transcriber.failure_rate", 0.05)
}
