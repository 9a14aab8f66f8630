// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	HTTP       HTTP
	App        App
	Job        Job
	Dir        Dir
	Tools      Tools
	DepManager DepManager
}

// App holds application-wide configuration.
type App struct {
	LogLevel string `env:"VIDBATCH_APP_LOG_LEVEL" envDefault:"info"`
}

// Job holds per-batch processing configuration.
type Job struct {
	// Workers bounds how many URLs of one batch are downloaded at once. 1 is strictly sequential.
	Workers int `env:"VIDBATCH_JOB_WORKERS" envDefault:"1"`
	// Timeout bounds a single downloader run. Zero disables the limit.
	Timeout time.Duration `env:"VIDBATCH_JOB_TIMEOUT" envDefault:"30m"`
	// DrainTimeout bounds how long shutdown waits for running batches before killing them.
	DrainTimeout time.Duration `env:"VIDBATCH_JOB_DRAIN_TIMEOUT" envDefault:"5m"`
}

// HTTP holds HTTP server configuration.
type HTTP struct {
	Port            string        `env:"VIDBATCH_HTTP_PORT"             envDefault:":8080"`
	HandlerTimeout  time.Duration `env:"VIDBATCH_HTTP_HANDLER_TIMEOUT"  envDefault:"20s"`
	ShutdownTimeout time.Duration `env:"VIDBATCH_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// SubmitRate limits batch submissions per second across all clients. Zero disables the limit.
	SubmitRate  float64 `env:"VIDBATCH_HTTP_SUBMIT_RATE"  envDefault:"0"`
	SubmitBurst int     `env:"VIDBATCH_HTTP_SUBMIT_BURST" envDefault:"5"`
}

// Dir holds the output directory and the naming policy for downloaded files.
type Dir struct {
	Downloads string `env:"VIDBATCH_DIR_DOWNLOAD" envDefault:"./downloads"` // one subdirectory per session

	// outputs are named <prefix><ordinal><ext>
	FilePrefix    string `env:"VIDBATCH_DIR_FILE_PREFIX"    envDefault:"twitter_video_"`
	FileExtension string `env:"VIDBATCH_DIR_FILE_EXTENSION" envDefault:".mp4"`
	ContentType   string `env:"VIDBATCH_DIR_CONTENT_TYPE"   envDefault:"video/mp4"`
}

// SetAbsPaths converts all directory paths to absolute paths.
func (c *Dir) SetAbsPaths() error {
	var err error
	if c.Downloads, err = filepath.Abs(c.Downloads); err != nil {
		return fmt.Errorf("downloads: %w", err)
	}

	return nil
}

// Tools names the external executables a batch depends on.
type Tools struct {
	Downloader string `env:"VIDBATCH_TOOLS_DOWNLOADER" envDefault:"yt-dlp"`
	// Remuxer is only probed; the downloader shells out to it on its own.
	Remuxer string `env:"VIDBATCH_TOOLS_REMUXER" envDefault:"ffmpeg"`
	// Format is passed to the downloader as -f.
	Format string `env:"VIDBATCH_TOOLS_FORMAT" envDefault:"best"`
}

// DepManager holds binary dependency management configuration.
type DepManager struct {
	// BinsDir is searched after PATH and receives auto-installed binaries.
	BinsDir string `env:"VIDBATCH_DEPMANAGER_BINS_DIR" envDefault:"./bins"`
	// AutoInstall downloads missing binaries into BinsDir on startup.
	AutoInstall bool `env:"VIDBATCH_DEPMANAGER_AUTO_INSTALL" envDefault:"false"`

	YTdlpLinuxARM64  string `env:"VIDBATCH_DEPMANAGER_YTDLP_LINUX_ARM64"  envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux_aarch64"`                          //nolint:lll
	YTdlpLinuxAMD64  string `env:"VIDBATCH_DEPMANAGER_YTDLP_LINUX_AMD64"  envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux"`                                  //nolint:lll
	FFmpegLinuxARM64 string `env:"VIDBATCH_DEPMANAGER_FFMPEG_LINUX_ARM64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linuxarm64-gpl.tar.xz"` //nolint:lll
	FFmpegLinuxAMD64 string `env:"VIDBATCH_DEPMANAGER_FFMPEG_LINUX_AMD64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linux64-gpl.tar.xz"`    //nolint:lll
}

// SetAbsPaths converts the BinsDir path to an absolute path.
func (d *DepManager) SetAbsPaths() error {
	var err error
	if d.BinsDir, err = filepath.Abs(d.BinsDir); err != nil {
		return fmt.Errorf("bins dir: %w", err)
	}

	return nil
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Job.Workers < 1 {
		cfg.Job.Workers = 1
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	err = cfg.DepManager.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set dep manager absolute paths: %w", err)
	}

	return cfg, nil
}
