package config

import (
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate uploader config
	if !isHTTPURL(c.Uploader.Endpoint) {
		errors = append(errors, ValidationError{
			Field:   "uploader.endpoint",
			Message: "invalid image host endpoint",
		})
	}

	if c.Uploader.CloudName == "" {
		errors = append(errors, ValidationError{
			Field:   "uploader.cloud_name",
			Message: "cloud name is required (or set CLOUDINARY_CLOUD_NAME)",
		})
	}

	if c.Uploader.UploadPreset == "" {
		errors = append(errors, ValidationError{
			Field:   "uploader.upload_preset",
			Message: "upload preset is required (or set CLOUDINARY_UPLOAD_PRESET)",
		})
	}

	if c.Uploader.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "uploader.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Uploader.Timeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "uploader.timeout",
			Message: "timeout cannot be negative",
		})
	}

	// Validate store config
	switch c.Store.Backend {
	case "airtable":
		if !isHTTPURL(c.Store.BaseURL) {
			errors = append(errors, ValidationError{
				Field:   "store.base_url",
				Message: "invalid record store URL",
			})
		}
		if c.Store.BaseID == "" {
			errors = append(errors, ValidationError{
				Field:   "store.base_id",
				Message: "base id is required (or set RECORDSTORE_BASE_ID)",
			})
		}
		if c.Store.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "store.api_key",
				Message: "api key is required (set RECORDSTORE_API_KEY)",
			})
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "store.database_url",
				Message: "database url is required (or set DATABASE_URL)",
			})
		} else if _, err := url.Parse(c.Store.DatabaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "store.database_url",
				Message: "invalid database URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown backend: %s", c.Store.Backend),
		})
	}

	if c.Store.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "store.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Editor.TagDelimiter == "" {
		errors = append(errors, ValidationError{
			Field:   "editor.tag_delimiter",
			Message: "tag_delimiter cannot be empty",
		})
	}

	for _, origin := range c.Server.AllowedOrigins {
		if !isHTTPURL(origin) {
			errors = append(errors, ValidationError{
				Field:   "server.allowed_origins",
				Message: fmt.Sprintf("invalid origin: %s", origin),
			})
		}
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errors = append(errors, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid log level: %s", c.Log.Level),
		})
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, ValidationError{
			Field:   "log.format",
			Message: "format must be text or json",
		})
	}

	return errors
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
