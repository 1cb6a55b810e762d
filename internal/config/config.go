package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	SRS      SRSConfig      `mapstructure:"srs" validate:"required"`
	Study    StudyConfig    `mapstructure:"study" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`
}

// Supported database drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig selects the repository backend.
// URL is a DSN for sqlite (a file path or ":memory:") and a connection URL for postgres.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory sqlite postgres"`
	URL    string `mapstructure:"url" validate:"required_unless=Driver memory"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// SRSConfig chooses the scheduling algorithm and its fixed intervals.
type SRSConfig struct {
	Algorithm    string `mapstructure:"algorithm" validate:"required,oneof=fixed sm2"`
	AgainMinutes int    `mapstructure:"again_minutes" validate:"gt=0"`
	HardMinutes  int    `mapstructure:"hard_minutes" validate:"gt=0"`
	GoodMinutes  int    `mapstructure:"good_minutes" validate:"gt=0"`
	EasyMinutes  int    `mapstructure:"easy_minutes" validate:"gt=0"`
}

// StudyConfig tunes the study session.
type StudyConfig struct {
	// DueRefreshSeconds is how often the due filter is recomputed as time passes.
	DueRefreshSeconds int `mapstructure:"due_refresh_seconds" validate:"gt=0"`
	// SwipeAnimationMS is the headless swipe duration; zero completes immediately.
	SwipeAnimationMS int `mapstructure:"swipe_animation_ms" validate:"gte=0"`
}
