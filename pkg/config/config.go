// Package config loads pipeline settings from a .env file or the
// environment.
package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the harvester.
type Config struct {
	DataDir         string `mapstructure:"DATA_DIR"`
	TopicsFile      string `mapstructure:"TOPICS_FILE"`
	DownloadWorkers int    `mapstructure:"DOWNLOAD_WORKERS"`
	MaxAttempts     int    `mapstructure:"MAX_ATTEMPTS"`
	MaxPerSubtopic  int    `mapstructure:"MAX_PER_SUBTOPIC"`
	BackoffBaseSecs int    `mapstructure:"BACKOFF_BASE_SECONDS"`
	BackoffMaxSecs  int    `mapstructure:"BACKOFF_MAX_SECONDS"`
	MaxDurationSecs int    `mapstructure:"MAX_VIDEO_DURATION_SECONDS"`
	OutputWidth     int    `mapstructure:"OUTPUT_WIDTH"`
	OutputHeight    int    `mapstructure:"OUTPUT_HEIGHT"`
	SearchRegion    string `mapstructure:"SEARCH_REGION"`
	SearchSafety    string `mapstructure:"SEARCH_SAFESEARCH"`
	MinPaceSecs     int    `mapstructure:"MIN_PACE_SECONDS"`
	MaxPaceSecs     int    `mapstructure:"MAX_PACE_SECONDS"`
	MinSearchDelay  int    `mapstructure:"MIN_SEARCH_DELAY_SECONDS"`
	MaxSearchDelay  int    `mapstructure:"MAX_SEARCH_DELAY_SECONDS"`
	YTDLPPath       string `mapstructure:"YTDLP_PATH"`
	FFmpegPath      string `mapstructure:"FFMPEG_PATH"`
	MetricsListen   string `mapstructure:"METRICS_LISTEN"`
}

// Load reads configuration from a .env file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Missing .env is fine; production configures through the environment.
	_ = viper.ReadInConfig()

	viper.SetDefault("DATA_DIR", "data")
	viper.SetDefault("TOPICS_FILE", "topics.json")
	viper.SetDefault("DOWNLOAD_WORKERS", 3)
	viper.SetDefault("MAX_ATTEMPTS", 5)
	viper.SetDefault("MAX_PER_SUBTOPIC", 3)
	viper.SetDefault("BACKOFF_BASE_SECONDS", 5)
	viper.SetDefault("BACKOFF_MAX_SECONDS", 300)
	viper.SetDefault("MAX_VIDEO_DURATION_SECONDS", 900)
	viper.SetDefault("OUTPUT_WIDTH", 256)
	viper.SetDefault("OUTPUT_HEIGHT", 256)
	viper.SetDefault("SEARCH_REGION", "wt-wt")
	viper.SetDefault("SEARCH_SAFESEARCH", "moderate")
	viper.SetDefault("MIN_PACE_SECONDS", 2)
	viper.SetDefault("MAX_PACE_SECONDS", 5)
	viper.SetDefault("MIN_SEARCH_DELAY_SECONDS", 3)
	viper.SetDefault("MAX_SEARCH_DELAY_SECONDS", 8)
	viper.SetDefault("YTDLP_PATH", "yt-dlp")
	viper.SetDefault("FFMPEG_PATH", "ffmpeg")
	viper.SetDefault("METRICS_LISTEN", "")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// JournalDir is where the append logs live.
func (c *Config) JournalDir() string { return filepath.Join(c.DataDir, "logs") }

// StatePath is the run state document.
func (c *Config) StatePath() string { return filepath.Join(c.DataDir, "state.json") }

// MetastorePath is the SQLite metadata database.
func (c *Config) MetastorePath() string { return filepath.Join(c.DataDir, "videos.db") }

// DownloadDir is the scratch directory for raw downloads.
func (c *Config) DownloadDir() string { return filepath.Join(c.DataDir, "downloads") }

// OutputDir is the root of the processed video tree.
func (c *Config) OutputDir() string { return filepath.Join(c.DataDir, "processed") }

// MaxDuration returns the per-video duration ceiling.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationSecs) * time.Second
}
