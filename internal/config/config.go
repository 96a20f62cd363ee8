package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	APIPort int `mapstructure:"api_port"`

	// Token signing
	SecretKey                string `mapstructure:"secret_key"`
	Algorithm                string `mapstructure:"algorithm"`
	AccessTokenExpireMinutes int    `mapstructure:"access_token_expire_minutes"`

	DatabaseURL string `mapstructure:"database_url"`

	// Remote object store. Leaving credentials or bucket empty selects local storage.
	AWSAccessKeyID     string `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey string `mapstructure:"aws_secret_access_key"`
	AWSRegion          string `mapstructure:"aws_region"`
	AWSS3Bucket        string `mapstructure:"aws_s3_bucket"`
	AWSS3Endpoint      string `mapstructure:"aws_s3_endpoint"`

	LocalStoragePath string `mapstructure:"local_storage_path"`
	MaxFileSizeMB    int    `mapstructure:"max_file_size_mb"`

	DetectorURL        string `mapstructure:"detector_url"`
	DetectorWorkers    int    `mapstructure:"detector_workers"`
	DetectorConcurrent bool   `mapstructure:"detector_concurrent"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// S3Enabled reports whether the remote object store is fully configured.
func (c *Config) S3Enabled() bool {
	return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != "" && c.AWSS3Bucket != ""
}

var supportedAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_port", 8000)
	v.SetDefault("secret_key", "your-secret-key-here-change-in-production")
	v.SetDefault("algorithm", "HS256")
	v.SetDefault("access_token_expire_minutes", 30)
	v.SetDefault("database_url", "sqlite:///./pixeon.db")
	v.SetDefault("aws_access_key_id", "")
	v.SetDefault("aws_secret_access_key", "")
	v.SetDefault("aws_region", "ap-northeast-1")
	v.SetDefault("aws_s3_bucket", "")
	v.SetDefault("aws_s3_endpoint", "")
	v.SetDefault("local_storage_path", "./uploads")
	v.SetDefault("max_file_size_mb", 10)
	v.SetDefault("detector_url", "http://localhost:9000")
	v.SetDefault("detector_workers", 0)
	v.SetDefault("detector_concurrent", false)
	v.SetDefault("allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// LoadConfig loads the configuration from an optional YAML file, a .env file
// and environment variables, in increasing order of precedence.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.SecretKey == "your-secret-key-here-change-in-production" {
		slog.Warn("SECRET_KEY not set, using the development default")
	}
	if !cfg.S3Enabled() {
		slog.Info("S3 credentials or bucket not set, images are stored locally", "path", cfg.LocalStoragePath)
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail late at request time.
func (c *Config) Validate() error {
	if c.APIPort <= 0 {
		return fmt.Errorf("invalid api port: %d", c.APIPort)
	}
	if c.SecretKey == "" {
		return errors.New("secret key must not be empty")
	}
	if !supportedAlgorithms[c.Algorithm] {
		return fmt.Errorf("unsupported token algorithm: %s", c.Algorithm)
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("access token lifetime must be positive, got %d", c.AccessTokenExpireMinutes)
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max file size must be positive, got %d", c.MaxFileSizeMB)
	}
	if c.DatabaseURL == "" {
		return errors.New("database url must not be empty")
	}
	if c.LocalStoragePath == "" {
		return errors.New("local storage path must not be empty")
	}
	return nil
}
