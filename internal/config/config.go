package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	S3       S3Config
	App      AppConfig
	Settings SettingsConfig
}

type ServerConfig struct {
	Host       string
	Port       string
	LogLevel   string
	AdminToken string
}

type S3Config struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	Prefix          string
}

type AppConfig struct {
	MaxUploadSize    int64
	MaxPixels        int64
	ThumbJPEGQuality int
	AutoOrient       bool
}

// SettingsConfig locates the runtime settings file and seeds it on first start.
type SettingsConfig struct {
	File            string
	ImagesDirectory string
	BaseURL         string
	ThumbMaxWidth   int
	ThumbMaxHeight  int
}

func Load() (*Config, error) {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("SERVER_HOST", "localhost")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ADMIN_TOKEN", "")
	v.SetDefault("S3_ENABLED", false)
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY_ID", "")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_BUCKET_NAME", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_PREFIX", "img_upload/")
	v.SetDefault("APP_MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	v.SetDefault("APP_MAX_PIXELS", 50_000_000)
	v.SetDefault("APP_THUMB_JPEG_QUALITY", 90)
	v.SetDefault("APP_AUTO_ORIENT", true)
	v.SetDefault("SETTINGS_FILE", "./img_upload.yaml")
	v.SetDefault("IMAGES_DIRECTORY", "")
	v.SetDefault("BASE_URL", "")
	v.SetDefault("THUMB_MAX_WIDTH", 0)
	v.SetDefault("THUMB_MAX_HEIGHT", 0)

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:       v.GetString("SERVER_HOST"),
			Port:       v.GetString("SERVER_PORT"),
			LogLevel:   v.GetString("LOG_LEVEL"),
			AdminToken: v.GetString("ADMIN_TOKEN"),
		},
		S3: S3Config{
			Enabled:         v.GetBool("S3_ENABLED"),
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			BucketName:      v.GetString("S3_BUCKET_NAME"),
			Region:          v.GetString("S3_REGION"),
			Prefix:          v.GetString("S3_PREFIX"),
		},
		App: AppConfig{
			MaxUploadSize:    v.GetInt64("APP_MAX_UPLOAD_SIZE"),
			MaxPixels:        v.GetInt64("APP_MAX_PIXELS"),
			ThumbJPEGQuality: v.GetInt("APP_THUMB_JPEG_QUALITY"),
			AutoOrient:       v.GetBool("APP_AUTO_ORIENT"),
		},
		Settings: SettingsConfig{
			File:            v.GetString("SETTINGS_FILE"),
			ImagesDirectory: v.GetString("IMAGES_DIRECTORY"),
			BaseURL:         v.GetString("BASE_URL"),
			ThumbMaxWidth:   v.GetInt("THUMB_MAX_WIDTH"),
			ThumbMaxHeight:  v.GetInt("THUMB_MAX_HEIGHT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	if c.App.MaxUploadSize <= 0 {
		return fmt.Errorf("APP_MAX_UPLOAD_SIZE must be positive")
	}
	if c.App.MaxPixels <= 0 {
		return fmt.Errorf("APP_MAX_PIXELS must be positive")
	}
	if c.App.ThumbJPEGQuality < 1 || c.App.ThumbJPEGQuality > 100 {
		return fmt.Errorf("APP_THUMB_JPEG_QUALITY must be between 1 and 100")
	}
	if c.Settings.File == "" {
		return fmt.Errorf("SETTINGS_FILE is required")
	}
	if c.S3.Enabled && strings.TrimSpace(c.S3.BucketName) == "" {
		return fmt.Errorf("S3_BUCKET_NAME is required when S3_ENABLED is set")
	}
	return nil
}
