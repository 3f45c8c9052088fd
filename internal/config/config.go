package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"        validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database"      validate:"required"`
	Auth          AuthConfig          `mapstructure:"auth"          validate:"required"`
	Transcription TranscriptionConfig `mapstructure:"transcription" validate:"required"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	BcryptCost           int    `mapstructure:"bcrypt_cost"            validate:"omitempty,gte=4,lte=31"`
}

// TranscriptionConfig contains the settings for the transcription job queue
// and worker pool.
type TranscriptionConfig struct {
	// WorkerCount is the number of concurrent transcription workers.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// QueueSize bounds the number of jobs the in-process scheduler will hold.
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`

	// SubmitDelayMs is the delay applied to newly submitted jobs before they
	// become eligible for processing.
	SubmitDelayMs int `mapstructure:"submit_delay_ms" validate:"gte=0"`

	// RetryBaseDelayMs is the base for the exponential retry backoff:
	// attempt k is retried after RetryBaseDelayMs * 2^(k-1) milliseconds.
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" validate:"required,gt=0"`

	// MaxAttempts bounds automatic retries; a job failing on its final
	// attempt is dead-lettered.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gt=0"`

	// Mode selects the Transcriber implementation: "mock" produces randomized
	// placeholder transcripts, "static" is deterministic.
	Mode string `mapstructure:"mode" validate:"required,oneof=mock static"`

	Mock MockTranscriberConfig `mapstructure:"mock_transcriber"`
}

// MockTranscriberConfig tunes the randomized mock transcriber.
type MockTranscriberConfig struct {
	MinDurationMs int     `mapstructure:"min_duration_ms" validate:"gte=0"`
	MaxDurationMs int     `mapstructure:"max_duration_ms" validate:"gte=0"`
	FailureRate   float64 `mapstructure:"failure_rate"    validate:"gte=0,lte=1"`
}
