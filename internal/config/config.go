package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Dispatch
	OperationTimeout time.Duration
	HostQueueSize    int
	StatsWindow      time.Duration
	JournalTTL       time.Duration

	// Gate
	GateWaitTimeout time.Duration
	GateMaxWaiters  int

	// Documents
	DocumentDir  string
	LinesPerPage int
	AutoCommit   bool
	PreviewChars int

	// Upload limits
	MaxUploadBytes int64
}

// File is the optional YAML overlay named by DOCBRIDGE_CONFIG. Environment
// variables take precedence over values from the file.
type File struct {
	Port             string `yaml:"port"`
	APIKey           string `yaml:"api_key"`
	OperationTimeout string `yaml:"operation_timeout"`
	HostQueueSize    int    `yaml:"host_queue_size"`
	StatsWindow      string `yaml:"stats_window"`
	JournalTTL       string `yaml:"journal_ttl"`
	GateWaitTimeout  string `yaml:"gate_wait_timeout"`
	GateMaxWaiters   int    `yaml:"gate_max_waiters"`
	DocumentDir      string `yaml:"document_dir"`
	LinesPerPage     int    `yaml:"lines_per_page"`
	AutoCommit       *bool  `yaml:"auto_commit"`
	PreviewChars     int    `yaml:"preview_chars"`
	MaxUploadBytes   int64  `yaml:"max_upload_bytes"`
}

func Default() Config {
	return Config{
		Port:             "8090",
		OperationTimeout: 60 * time.Second,
		HostQueueSize:    64,
		StatsWindow:      time.Hour,
		JournalTTL:       10 * time.Minute,
		DocumentDir:      ".",
		LinesPerPage:     40,
		AutoCommit:       true,
		PreviewChars:     100,
		MaxUploadBytes:   52428800, // 50MB
	}
}

// Load reads DOCBRIDGE_CONFIG if set, then applies environment overrides.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("DOCBRIDGE_CONFIG"); path != "" {
		f, err := ReadFile(path)
		if err != nil {
			return cfg, err
		}
		f.apply(&cfg)
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("DOCBRIDGE_API_KEY", cfg.APIKey)

	cfg.OperationTimeout = envDuration("OPERATION_TIMEOUT", cfg.OperationTimeout)
	cfg.HostQueueSize = envInt("HOST_QUEUE_SIZE", cfg.HostQueueSize)
	cfg.StatsWindow = envDuration("STATS_WINDOW", cfg.StatsWindow)
	cfg.JournalTTL = envDuration("JOURNAL_TTL", cfg.JournalTTL)

	cfg.GateWaitTimeout = envDuration("GATE_WAIT_TIMEOUT", cfg.GateWaitTimeout)
	cfg.GateMaxWaiters = envInt("GATE_MAX_WAITERS", cfg.GateMaxWaiters)

	cfg.DocumentDir = envOr("DOCUMENT_DIR", cfg.DocumentDir)
	cfg.LinesPerPage = envInt("LINES_PER_PAGE", cfg.LinesPerPage)
	cfg.AutoCommit = envBool("AUTO_COMMIT", cfg.AutoCommit)
	cfg.PreviewChars = envInt("PREVIEW_CHARS", cfg.PreviewChars)

	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)

	cfg.clamp()
	return cfg, nil
}

// ReadFile parses a YAML config overlay.
func ReadFile(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

func (f File) apply(cfg *Config) {
	if f.Port != "" {
		cfg.Port = f.Port
	}
	if f.APIKey != "" {
		cfg.APIKey = f.APIKey
	}
	cfg.OperationTimeout = parseDuration(f.OperationTimeout, cfg.OperationTimeout)
	cfg.StatsWindow = parseDuration(f.StatsWindow, cfg.StatsWindow)
	cfg.JournalTTL = parseDuration(f.JournalTTL, cfg.JournalTTL)
	cfg.GateWaitTimeout = parseDuration(f.GateWaitTimeout, cfg.GateWaitTimeout)
	if f.HostQueueSize != 0 {
		cfg.HostQueueSize = f.HostQueueSize
	}
	if f.GateMaxWaiters != 0 {
		cfg.GateMaxWaiters = f.GateMaxWaiters
	}
	if f.DocumentDir != "" {
		cfg.DocumentDir = f.DocumentDir
	}
	if f.LinesPerPage != 0 {
		cfg.LinesPerPage = f.LinesPerPage
	}
	if f.AutoCommit != nil {
		cfg.AutoCommit = *f.AutoCommit
	}
	if f.PreviewChars != 0 {
		cfg.PreviewChars = f.PreviewChars
	}
	if f.MaxUploadBytes != 0 {
		cfg.MaxUploadBytes = f.MaxUploadBytes
	}
}

func (c *Config) clamp() {
	def := Default()
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = def.OperationTimeout
	}
	if c.HostQueueSize <= 0 {
		c.HostQueueSize = def.HostQueueSize
	}
	if c.StatsWindow <= 0 {
		c.StatsWindow = def.StatsWindow
	}
	if c.JournalTTL <= 0 {
		c.JournalTTL = def.JournalTTL
	}
	if c.GateWaitTimeout < 0 {
		c.GateWaitTimeout = 0
	}
	if c.GateMaxWaiters < 0 {
		c.GateMaxWaiters = 0
	}
	// A wait timeout alone turns on bounded waiting.
	if c.GateWaitTimeout > 0 && c.GateMaxWaiters == 0 {
		c.GateMaxWaiters = 16
	}
	if c.LinesPerPage <= 0 {
		c.LinesPerPage = def.LinesPerPage
	}
	if c.PreviewChars <= 0 {
		c.PreviewChars = def.PreviewChars
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = def.MaxUploadBytes
	}
}

func (c Config) Validate() error {
	info, err := os.Stat(c.DocumentDir)
	if err != nil {
		return fmt.Errorf("DOCUMENT_DIR: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("DOCUMENT_DIR %s is not a directory", c.DocumentDir)
	}
	return nil
}

func parseDuration(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	return parseDuration(os.Getenv(key), fallback)
}
