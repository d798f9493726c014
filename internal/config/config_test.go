package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, int64(10*1024*1024), cfg.App.MaxUploadSize)
	assert.Equal(t, int64(50_000_000), cfg.App.MaxPixels)
	assert.Equal(t, 90, cfg.App.ThumbJPEGQuality)
	assert.True(t, cfg.App.AutoOrient)
	assert.False(t, cfg.S3.Enabled)
	assert.Equal(t, "img_upload/", cfg.S3.Prefix)
	assert.Equal(t, "./img_upload.yaml", cfg.Settings.File)
	assert.Zero(t, cfg.Settings.ThumbMaxWidth)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ADMIN_TOKEN", "secret")
	t.Setenv("IMAGES_DIRECTORY", "/srv/images")
	t.Setenv("BASE_URL", "https://blog.example.com/images")
	t.Setenv("THUMB_MAX_WIDTH", "800")
	t.Setenv("THUMB_MAX_HEIGHT", "600")
	t.Setenv("S3_ENABLED", "true")
	t.Setenv("S3_BUCKET_NAME", "assets")
	t.Setenv("APP_MAX_PIXELS", "1000000")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.AdminToken)
	assert.Equal(t, "/srv/images", cfg.Settings.ImagesDirectory)
	assert.Equal(t, "https://blog.example.com/images", cfg.Settings.BaseURL)
	assert.Equal(t, 800, cfg.Settings.ThumbMaxWidth)
	assert.Equal(t, 600, cfg.Settings.ThumbMaxHeight)
	assert.True(t, cfg.S3.Enabled)
	assert.Equal(t, "assets", cfg.S3.BucketName)
	assert.Equal(t, int64(1_000_000), cfg.App.MaxPixels)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: "8080"},
			App:      AppConfig{MaxUploadSize: 1024, MaxPixels: 1 << 20, ThumbJPEGQuality: 90},
			Settings: SettingsConfig{File: "settings.yaml"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: true},
		{name: "zero upload size", mutate: func(c *Config) { c.App.MaxUploadSize = 0 }, wantErr: true},
		{name: "zero pixel limit", mutate: func(c *Config) { c.App.MaxPixels = 0 }, wantErr: true},
		{name: "quality out of range", mutate: func(c *Config) { c.App.ThumbJPEGQuality = 101 }, wantErr: true},
		{name: "missing settings file", mutate: func(c *Config) { c.Settings.File = "" }, wantErr: true},
		{name: "s3 without bucket", mutate: func(c *Config) { c.S3.Enabled = true }, wantErr: true},
		{
			name: "s3 with bucket",
			mutate: func(c *Config) {
				c.S3.Enabled = true
				c.S3.BucketName = "images"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
