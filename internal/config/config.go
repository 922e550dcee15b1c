package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/eargollo/docqueue/internal/document"
	"github.com/eargollo/docqueue/internal/fields"
	"github.com/eargollo/docqueue/internal/queue"
	"github.com/eargollo/docqueue/internal/report"
	"github.com/eargollo/docqueue/internal/scan"
)

// Config holds all configuration loaded from config.yaml.
type Config struct {
	ScanPaths  []string     `yaml:"scan_paths"  json:"scan_paths"`
	Schedule   string       `yaml:"schedule"    json:"schedule"`
	ScanPaused bool         `yaml:"scan_paused" json:"scan_paused"`
	DBPath     string       `yaml:"db_path"     json:"-"`
	HTTPAddr   string       `yaml:"http_addr"   json:"-"`
	LogLevel   string       `yaml:"log_level"   json:"-"`
	Scan       ScanOptions  `yaml:"scan"        json:"scan"`
	Identity   Identity     `yaml:"identity"    json:"identity"`
	Queue      Backend      `yaml:"queue"       json:"queue"`
	Report     Backend      `yaml:"report"      json:"report"`
	Fields     fields.Names `yaml:"fields"      json:"fields"`
}

// ScanOptions holds the walker filters and concurrency.
type ScanOptions struct {
	IncludePattern     string `yaml:"include_pattern"      json:"include_pattern"`
	ExcludePattern     string `yaml:"exclude_pattern"      json:"exclude_pattern"`
	FollowSymlinks     bool   `yaml:"follow_symlinks"      json:"follow_symlinks"`
	IncludeHiddenFiles bool   `yaml:"include_hidden_files" json:"include_hidden_files"`
	IncludeOSFiles     bool   `yaml:"include_os_files"     json:"include_os_files"`
	MaxDepth           int    `yaml:"max_depth"            json:"max_depth"`
	Parallelism        int    `yaml:"parallelism"          json:"parallelism"`
}

// Identity selects how document IDs are computed.
type Identity struct {
	Method       string `yaml:"method"        json:"method"`
	DigestMethod string `yaml:"digest_method" json:"digest_method"`
	DigestInput  string `yaml:"digest_input"  json:"digest_input"`
	Charset      string `yaml:"charset"       json:"charset"`
}

// Backend addresses a queue or report store.
type Backend struct {
	Type     string `yaml:"type"     json:"type"`
	Name     string `yaml:"name"     json:"name"`
	Address  string `yaml:"address"  json:"address"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db"       json:"db"`
	Capacity int    `yaml:"capacity" json:"capacity,omitempty"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills zero/empty fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "/data/docqueue.db"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Scan.Parallelism == 0 {
		c.Scan.Parallelism = scan.DefaultParallelism
	}
	if c.Identity.Method == "" {
		c.Identity.Method = string(document.IDMethodPath)
	}
	if c.Identity.DigestMethod == "" {
		c.Identity.DigestMethod = document.DefaultAlgorithm
	}
	if c.Identity.DigestInput == "" {
		c.Identity.DigestInput = string(document.DigestContent)
	}
	if c.Identity.Charset == "" {
		c.Identity.Charset = document.DefaultCharset
	}
	if c.Queue.Type == "" {
		c.Queue.Type = queue.TypeMemory
	}
	if c.Queue.Name == "" {
		c.Queue.Name = queue.DefaultName
	}
	if c.Report.Type == "" {
		c.Report.Type = report.TypeMemory
	}
	if c.Report.Name == "" {
		c.Report.Name = report.DefaultName
	}
	c.Fields = c.Fields.WithDefaults()
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns a default Config so the tool
// can run without a config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Validate reports every configuration error at once, before anything is
// opened or scanned.
func (c *Config) Validate() error {
	var errs []error
	if opts, err := c.DocumentOptions(); err != nil {
		errs = append(errs, err)
	} else if _, err := document.NewFactory(opts); err != nil {
		errs = append(errs, err)
	}
	if err := c.QueueConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.ReportConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Scan.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("scan.max_depth must be >= 0, got %d", c.Scan.MaxDepth))
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid schedule %q: %w", c.Schedule, err))
		}
	}
	return errors.Join(errs...)
}

// DocumentOptions converts the identity section.
func (c *Config) DocumentOptions() (document.Options, error) {
	method, err := document.ParseIDMethod(c.Identity.Method)
	if err != nil {
		return document.Options{}, err
	}
	input, err := document.ParseDigestInput(c.Identity.DigestInput)
	if err != nil {
		return document.Options{}, err
	}
	return document.Options{
		Method:    method,
		Algorithm: c.Identity.DigestMethod,
		Input:     input,
		Charset:   c.Identity.Charset,
	}, nil
}

// ScanOptions converts the scan section. OnError is left for the caller.
func (c *Config) ScanOptions() scan.Options {
	return scan.Options{
		Include:        c.Scan.IncludePattern,
		Exclude:        c.Scan.ExcludePattern,
		FollowSymlinks: c.Scan.FollowSymlinks,
		IncludeHidden:  c.Scan.IncludeHiddenFiles,
		IncludeOSFiles: c.Scan.IncludeOSFiles,
		MaxDepth:       c.Scan.MaxDepth,
		Parallelism:    c.Scan.Parallelism,
	}
}

// QueueConfig converts the queue section.
func (c *Config) QueueConfig() queue.Config {
	return queue.Config{
		Type:     strings.ToLower(c.Queue.Type),
		Name:     c.Queue.Name,
		Address:  c.Queue.Address,
		Password: c.Queue.Password,
		DB:       c.Queue.DB,
		Capacity: c.Queue.Capacity,
	}
}

// ReportConfig converts the report section.
func (c *Config) ReportConfig() report.Config {
	return report.Config{
		Type:     strings.ToLower(c.Report.Type),
		Name:     c.Report.Name,
		Address:  c.Report.Address,
		Password: c.Report.Password,
		DB:       c.Report.DB,
	}
}

// ParseLevel maps log_level to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
