package config

import "time"

// GzipStrategy selects the deflate heuristic. The classic zlib strategies
// collapse to two meaningful choices for the gzip writer in use.
type GzipStrategy string

const (
	GzipDefault     GzipStrategy = "default"
	GzipHuffmanOnly GzipStrategy = "huffman-only"
)

type (
	Web struct {
		// RootDir is the directory static dashboard files are served from.
		RootDir string `mapstructure:"root_dir"`
		// EnableGzip turns on response compression for clients that accept it.
		EnableGzip bool `mapstructure:"enable_gzip"`
		// GzipLevel is the deflate compression level, 1 (fastest) to 9 (best).
		GzipLevel    int          `mapstructure:"gzip_level"`
		GzipStrategy GzipStrategy `mapstructure:"gzip_strategy"`
		// RespectDoNotTrack makes the engine honour the DNT request header
		// and advertise the tracking status via the Tk response header.
		RespectDoNotTrack bool `mapstructure:"respect_do_not_track"`
		// XFrameOptions is emitted verbatim as the X-Frame-Options response
		// header when non-empty.
		XFrameOptions string `mapstructure:"x_frame_options"`
		// Timeout bounds the time between receiving a request and preparing
		// its response: a checkpoint that finds it exceeded, before the
		// header is sent, answers 504. Sending is not bounded by it. Zero
		// disables the check.
		Timeout time.Duration `mapstructure:"timeout"`
		// MaxRequestSize caps the bytes accumulated while waiting for a
		// complete request header block.
		MaxRequestSize int `mapstructure:"max_request_size"`
	}

	NET struct {
		// ReadBufferSize is the granularity of socket reads.
		ReadBufferSize int `mapstructure:"read_buffer_size"`
		// MaxConnections limits concurrently served sockets per listener.
		MaxConnections int `mapstructure:"max_connections"`
		// IdleTimeout closes keep-alive connections with no request in
		// flight after this long.
		IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	}

	TLS struct {
		// Force redirects plain-transport requests to https and refuses
		// plain STREAM ingestion.
		Force bool   `mapstructure:"force"`
		Cert  string `mapstructure:"cert"`
		Key   string `mapstructure:"key"`
		// AutocertDir persists automatically obtained certificates between
		// agent restarts. Empty picks a directory under the user cache.
		AutocertDir string `mapstructure:"autocert_dir"`
	}

	Log struct {
		Level      string `mapstructure:"level"`
		Format     string `mapstructure:"format"`
		File       string `mapstructure:"file"`
		AccessFile string `mapstructure:"access_file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
		Compress   bool   `mapstructure:"compress"`
	}
)

// Config holds the knobs of the embedded web server. Always start from
// Default() and override; zero values are not meaningful defaults.
type Config struct {
	Web Web `mapstructure:"web"`
	NET NET `mapstructure:"net"`
	TLS TLS `mapstructure:"tls"`
	Log Log `mapstructure:"log"`
}

func Default() *Config {
	return &Config{
		Web: Web{
			RootDir:           "/usr/share/vigil/web",
			EnableGzip:        true,
			GzipLevel:         3,
			GzipStrategy:      GzipDefault,
			RespectDoNotTrack: false,
			Timeout:           2 * time.Minute,
			MaxRequestSize:    64 * 1024,
		},
		NET: NET{
			ReadBufferSize: 4 * 1024,
			MaxConnections: 2048,
			IdleTimeout:    90 * time.Second,
		},
		Log: Log{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  64,
			MaxBackups: 4,
			MaxAgeDays: 14,
		},
	}
}
