package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validatePolicy(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateUpload() error {
	if c.Upload.Endpoint == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/qupload/config.toml"
		}
		return fmt.Errorf("upload.endpoint is required. Edit %s (create with 'qupload config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Upload.Endpoint)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("upload.endpoint %q must be an http(s) URL", c.Upload.Endpoint)
	}
	if c.Upload.MaxConcurrent > 32 {
		return errors.New("upload.max_concurrent must be 32 or lower")
	}
	return nil
}

func (c *Config) validatePolicy() error {
	for _, entry := range c.Policy.AcceptedTypes {
		if !strings.Contains(entry, "/") {
			return fmt.Errorf("policy.accepted_types entry %q is not a MIME type", entry)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
