package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Scan     ScanConfig     `mapstructure:"scan"`
	AutoAuth AutoAuthConfig `mapstructure:"auto_auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// StorageConfig holds receipt document storage configuration
type StorageConfig struct {
	ReceiptsDir string `mapstructure:"receipts_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// OCRConfig holds local OCR engine configuration
type OCRConfig struct {
	Languages []string `mapstructure:"languages"`
}

// ScanConfig holds receipt scan pipeline configuration
type ScanConfig struct {
	NativeTextTimeout time.Duration `mapstructure:"native_text_timeout"`
	LocalOCRTimeout   time.Duration `mapstructure:"local_ocr_timeout"`
	VisionTimeout     time.Duration `mapstructure:"vision_timeout"`
	MaxPages          int           `mapstructure:"max_pages"`
}

// AutoAuthConfig holds auto-authorization engine configuration
type AutoAuthConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	AmountTolerance float64  `mapstructure:"amount_tolerance"`
	DateWindowDays  int      `mapstructure:"date_window_days"`
	MatchThreshold  float64  `mapstructure:"match_threshold"`
	ReviewerRoles   []string `mapstructure:"reviewer_roles"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Override with environment variables
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/hub.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// OpenAI defaults
	viper.SetDefault("openai.model", "gpt-4o")
	viper.SetDefault("openai.temperature", 0.1)
	viper.SetDefault("openai.max_tokens", 2000)
	viper.SetDefault("openai.timeout", 60*time.Second)

	// OCR defaults
	viper.SetDefault("ocr.languages", []string{"eng"})

	// Scan defaults
	viper.SetDefault("scan.native_text_timeout", 5*time.Second)
	viper.SetDefault("scan.local_ocr_timeout", 30*time.Second)
	viper.SetDefault("scan.vision_timeout", 90*time.Second)
	viper.SetDefault("scan.max_pages", 2)

	// Auto-authorization defaults
	viper.SetDefault("auto_auth.enabled", true)
	viper.SetDefault("auto_auth.amount_tolerance", 0.01)
	viper.SetDefault("auto_auth.date_window_days", 7)
	viper.SetDefault("auto_auth.match_threshold", 1.0)
	viper.SetDefault("auto_auth.reviewer_roles", []string{"admin", "accountant"})

	// Storage defaults
	viper.SetDefault("storage.receipts_dir", "data/receipts")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("database.path", "HUB_DATABASE_PATH")
	viper.BindEnv("server.port", "HUB_SERVER_PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port number")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.AutoAuth.MatchThreshold <= 0 {
		return fmt.Errorf("auto_auth.match_threshold must be positive")
	}
	if len(c.AutoAuth.ReviewerRoles) == 0 {
		return fmt.Errorf("auto_auth.reviewer_roles must not be empty")
	}
	return nil
}
