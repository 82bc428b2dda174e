// Package config provides XML-based configuration management for air-gapped deployment.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"SlideWizard"`

	Server     ServerConfig     `xml:"Server"`
	Storage    StorageConfig    `xml:"Storage"`
	Services   ServicesConfig   `xml:"Services"`
	Processing ProcessingConfig `xml:"Processing"`
	Wizard     WizardConfig     `xml:"Wizard"`
	Logging    LoggingConfig    `xml:"Logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory     string `xml:"DataDirectory"`
	UploadsDirectory  string `xml:"UploadsDirectory"`
	SettingsDirectory string `xml:"SettingsDirectory"`
	// HistoryDatabase is the run history DuckDB file; empty disables history.
	HistoryDatabase string `xml:"HistoryDatabase"`
	PresetFile      string `xml:"PresetFile"`
	MaxUploadSize   string `xml:"MaxUploadSize"`
	// UploadRetentionHours bounds how long stored templates and batches are kept; 0 keeps them.
	UploadRetentionHours int `xml:"UploadRetentionHours"`
}

// ServicesConfig points at the analyzer and generator.
type ServicesConfig struct {
	AnalyzerURL  string `xml:"AnalyzerURL"`
	GeneratorURL string `xml:"GeneratorURL"`
	// 0 means no timeout.
	RequestTimeout int `xml:"RequestTimeoutSeconds"`
}

// ProcessingConfig contains batch generation settings
type ProcessingConfig struct {
	DefaultImageOrder      string `xml:"DefaultImageOrder"`
	SkipEmptyFolders       bool   `xml:"SkipEmptyFolders"`
	JobRetentionMinutes    int    `xml:"JobRetentionMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
}

// WizardConfig contains session limits
type WizardConfig struct {
	MaxSessions           int `xml:"MaxSessions"`
	SessionTimeoutMinutes int `xml:"SessionTimeoutMinutes"`
	EventBufferSize       int `xml:"EventBufferSize"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level                string `xml:"Level"`
	Format               string `xml:"Format"`
	File                 string `xml:"File"`
	MaxSizeMB            int    `xml:"MaxSizeMB"`
	MaxBackups           int    `xml:"MaxBackups"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 0,
			IdleTimeout:  120,
			BodyLimit:    "2G",
		},
		Storage: StorageConfig{
			DataDirectory:        "./data",
			UploadsDirectory:     "./data/uploads",
			SettingsDirectory:    "./data/settings",
			HistoryDatabase:      "./data/history.duckdb",
			MaxUploadSize:        "2G",
			UploadRetentionHours: 24,
		},
		Services: ServicesConfig{
			AnalyzerURL:    "http://localhost:5000",
			GeneratorURL:   "http://localhost:5000",
			RequestTimeout: 0,
		},
		Processing: ProcessingConfig{
			DefaultImageOrder:      "alphabetical",
			SkipEmptyFolders:       true,
			JobRetentionMinutes:    60,
			CleanupIntervalMinutes: 5,
		},
		Wizard: WizardConfig{
			MaxSessions:           50,
			SessionTimeoutMinutes: 30,
			EventBufferSize:       64,
		},
		Logging: LoggingConfig{
			Level:                "info",
			Format:               "text",
			MaxSizeMB:            10,
			MaxBackups:           3,
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// First run: write the defaults so operators have a file to edit
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Slide Wizard Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR moves every default directory under it
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.SettingsDirectory = filepath.Join(dataDir, "settings")
		if c.Storage.HistoryDatabase != "" {
			c.Storage.HistoryDatabase = filepath.Join(dataDir, "history.duckdb")
		}
	}

	if u := os.Getenv("ANALYZER_URL"); u != "" {
		c.Services.AnalyzerURL = u
	}
	if u := os.Getenv("GENERATOR_URL"); u != "" {
		c.Services.GeneratorURL = u
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	resolve(&c.Storage.DataDirectory)
	resolve(&c.Storage.UploadsDirectory)
	resolve(&c.Storage.SettingsDirectory)
	resolve(&c.Storage.HistoryDatabase)
	resolve(&c.Storage.PresetFile)
	resolve(&c.Logging.File)
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// RequestTimeout returns the remote call timeout, zero for none.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Services.RequestTimeout) * time.Second
}

// SessionTimeout returns the idle age after which a wizard session is dropped.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Wizard.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns how often sessions and jobs are swept.
func (c *AppConfig) CleanupInterval() time.Duration {
	if c.Processing.CleanupIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// JobRetention returns how long finished jobs stay queryable.
func (c *AppConfig) JobRetention() time.Duration {
	return time.Duration(c.Processing.JobRetentionMinutes) * time.Minute
}

// UploadRetention returns how long uploads are kept, 0 for forever.
func (c *AppConfig) UploadRetention() time.Duration {
	if c.Storage.UploadRetentionHours <= 0 {
		return 0
	}
	return time.Duration(c.Storage.UploadRetentionHours) * time.Hour
}

// MaxUploadBytes parses Storage.MaxUploadSize ("500M", "2G", "1048576").
func (c *AppConfig) MaxUploadBytes() (int64, error) {
	return ParseSize(c.Storage.MaxUploadSize)
}

// ParseSize parses a byte size with an optional K, M or G suffix.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	s = strings.TrimSuffix(s, "B")
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	mult := int64(1)
	switch s[len(s)-1] {
	case 'K':
		mult = 1 << 10
	case 'M':
		mult = 1 << 20
	case 'G':
		mult = 1 << 30
	}
	if mult > 1 {
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.SettingsDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
