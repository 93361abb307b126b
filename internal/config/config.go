package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Media    MediaConfig    `mapstructure:"media"`
	S3       S3Config       `mapstructure:"s3"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Upload   UploadConfig   `mapstructure:"upload"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// StorageConfig selects which blob store backs the remote media operations.
// The original deployment ran both variants, so the provider stays a
// config-time switch: "media" or "s3".
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
}

// MediaConfig configures the hosted media provider (chunk-session uploads,
// destroy, signed fetch URLs).
type MediaConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// AdminConfig holds the shared token guarding the admin review endpoints.
type AdminConfig struct {
	Token string `mapstructure:"token"`
}

// UploadConfig tunes the chunked upload pipeline.
type UploadConfig struct {
	ChunkSize      int64         `mapstructure:"chunk_size"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	SessionDir     string        `mapstructure:"session_dir"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	Folder         string        `mapstructure:"folder"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment variables override file values, e.g. server.address ->
	// SERVER_ADDRESS, admin.token -> ADMIN_TOKEN.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "pitchreel")
	viper.SetDefault("storage.provider", "media")
	viper.SetDefault("s3.use_ssl", true)
	viper.SetDefault("upload.chunk_size", 6*1024*1024) // provider-recommended chunk granularity
	viper.SetDefault("upload.max_retries", 3)
	viper.SetDefault("upload.retry_delay", "1s")
	viper.SetDefault("upload.attempt_timeout", "5m")
	viper.SetDefault("upload.session_dir", ".pitchreel/sessions")
	viper.SetDefault("upload.session_ttl", "24h")
	viper.SetDefault("upload.folder", "submissions")

	err = viper.ReadInConfig()
	// A missing config file is fine; env vars and defaults carry the rest.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
