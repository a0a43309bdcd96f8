// Package config provides configuration loading for git2pdf.
//
// Configuration comes from hardcoded defaults, an optional YAML file and
// GIT2PDF_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/git2pdf/internal/logging"
	"github.com/fyrsmithlabs/git2pdf/internal/telemetry"
)

// Config holds the complete git2pdf configuration.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Workspace WorkspaceConfig  `koanf:"workspace"`
	Fetch     FetchConfig      `koanf:"fetch"`
	Limits    LimitsConfig     `koanf:"limits"`
	Document  DocumentConfig   `koanf:"document"`
	Logging   logging.Config   `koanf:"logging"`
	Telemetry telemetry.Config `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RateLimit is requests per second per client on the API routes.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// WorkspaceConfig controls where scratch space and artifacts live.
type WorkspaceConfig struct {
	// Dir is the operator override tried before the system and home
	// fallbacks. Empty skips it.
	Dir          string   `koanf:"dir"`
	MinFreeSpace ByteSize `koanf:"min_free_space"`
	// Retention is how long artifacts and stale scratch directories are kept.
	Retention Duration `koanf:"retention"`
}

// FetchConfig controls the clone subprocess.
type FetchConfig struct {
	GitPath string   `koanf:"git_path"`
	Timeout Duration `koanf:"timeout"`
	// Depth > 0 makes shallow clones; commit descriptions then only see the
	// fetched history.
	Depth        int      `koanf:"depth"`
	AllowedHosts []string `koanf:"allowed_hosts"`
}

// LimitsConfig bounds a single conversion and the service as a whole.
type LimitsConfig struct {
	MaxConcurrent      int      `koanf:"max_concurrent"`
	MaxFiles           int      `koanf:"max_files"`
	MaxFileSize        ByteSize `koanf:"max_file_size"`
	MaxArtifactSize    ByteSize `koanf:"max_artifact_size"`
	ExcludedExtensions []string `koanf:"excluded_extensions"`
}

// DocumentConfig controls rendering.
type DocumentConfig struct {
	FontSize          float64 `koanf:"font_size"`
	IncludeCommitInfo bool    `koanf:"include_commit_info"`
	LineNumbers       bool    `koanf:"line_numbers"`
}

// Default values.
const (
	DefaultPort            = 8080
	DefaultMaxConcurrent   = 3
	DefaultMaxFiles        = 1000
	DefaultMaxFileSize     = 1000 * 1024
	DefaultMaxArtifactSize = 10 * 1024 * 1024
	DefaultMinFreeSpace    = 100 * 1024 * 1024
	DefaultCloneTimeout    = 30 * time.Second
	DefaultRetention       = time.Hour
	DefaultFontSize        = 12
)

// DefaultExcludedExtensions are file types never rendered.
var DefaultExcludedExtensions = []string{"jpg", "png", "gif", "mp4", "zip", "exe"}

// Defaults returns a Config populated with default values. Slices are left
// nil and filled by applyDefaults after loading.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            DefaultPort,
			ShutdownTimeout: Duration(10 * time.Second),
			RateLimit:       1,
			RateBurst:       5,
		},
		Workspace: WorkspaceConfig{
			Dir:          "./temp",
			MinFreeSpace: DefaultMinFreeSpace,
			Retention:    Duration(DefaultRetention),
		},
		Fetch: FetchConfig{
			GitPath: "git",
			Timeout: Duration(DefaultCloneTimeout),
		},
		Limits: LimitsConfig{
			MaxConcurrent:   DefaultMaxConcurrent,
			MaxFiles:        DefaultMaxFiles,
			MaxFileSize:     DefaultMaxFileSize,
			MaxArtifactSize: DefaultMaxArtifactSize,
		},
		Document: DocumentConfig{
			FontSize:          DefaultFontSize,
			IncludeCommitInfo: true,
		},
		Logging:   *logging.NewDefaultConfig(),
		Telemetry: *telemetry.NewDefaultConfig(),
	}
}

// applyDefaults fills list values that were not configured and normalizes
// comma-separated list entries coming from environment variables.
func applyDefaults(cfg *Config) {
	if cfg.Fetch.AllowedHosts == nil {
		cfg.Fetch.AllowedHosts = []string{"github.com"}
	}
	if cfg.Limits.ExcludedExtensions == nil {
		cfg.Limits.ExcludedExtensions = append([]string(nil), DefaultExcludedExtensions...)
	}
	cfg.Fetch.AllowedHosts = splitList(cfg.Fetch.AllowedHosts)
	cfg.Limits.ExcludedExtensions = splitList(cfg.Limits.ExcludedExtensions)
	for i, ext := range cfg.Limits.ExcludedExtensions {
		cfg.Limits.ExcludedExtensions[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port <= 65535, "server.port must be between 1 and 65535, got %d", c.Server.Port)
	check(c.Server.ShutdownTimeout > 0, "server.shutdown_timeout must be positive")
	check(c.Server.RateLimit > 0, "server.rate_limit must be positive")
	check(c.Server.RateBurst > 0, "server.rate_burst must be positive")
	check(c.Workspace.Retention > 0, "workspace.retention must be positive")
	check(c.Fetch.GitPath != "", "fetch.git_path is required")
	check(c.Fetch.Timeout > 0, "fetch.timeout must be positive")
	check(c.Fetch.Depth >= 0, "fetch.depth cannot be negative")
	check(c.Limits.MaxConcurrent > 0, "limits.max_concurrent must be positive")
	check(c.Limits.MaxFiles > 0, "limits.max_files must be positive")
	check(c.Limits.MaxFileSize > 0, "limits.max_file_size must be positive")
	check(c.Limits.MaxArtifactSize > 0, "limits.max_artifact_size must be positive")
	check(c.Document.FontSize >= 4 && c.Document.FontSize <= 72, "document.font_size must be between 4 and 72, got %v", c.Document.FontSize)

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}
