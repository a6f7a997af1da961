package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeUpload()
	c.normalizePolicy()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeUpload() {
	c.Upload.Endpoint = strings.TrimRight(strings.TrimSpace(c.Upload.Endpoint), "/")
	if c.Upload.Token == "" {
		if value, ok := os.LookupEnv("QUPLOAD_TOKEN"); ok {
			c.Upload.Token = value
		}
	}
	c.Upload.Token = strings.TrimSpace(c.Upload.Token)
	if c.Upload.MaxConcurrent <= 0 {
		c.Upload.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Upload.AutoRetries < 0 {
		c.Upload.AutoRetries = 0
	}
	if c.Upload.RequestTimeout <= 0 {
		c.Upload.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizePolicy() {
	normalized := make([]string, 0, len(c.Policy.AcceptedTypes))
	for _, entry := range c.Policy.AcceptedTypes {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		normalized = append(normalized, entry)
	}
	c.Policy.AcceptedTypes = normalized
	if c.Policy.MaxFileSizeMB < 0 {
		c.Policy.MaxFileSizeMB = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
