package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Uploader struct {
		Endpoint     string        `yaml:"endpoint"`
		CloudName    string        `yaml:"cloud_name"`
		UploadPreset string        `yaml:"upload_preset"`
		Folder       string        `yaml:"folder"`
		RateLimit    float64       `yaml:"rate_limit"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"uploader"`

	Store struct {
		Backend     string  `yaml:"backend"`
		BaseURL     string  `yaml:"base_url"`
		BaseID      string  `yaml:"base_id"`
		APIKey      string  `yaml:"api_key"`
		DatabaseURL string  `yaml:"database_url"`
		EntryTable  string  `yaml:"entry_table"`
		ImageTable  string  `yaml:"image_table"`
		TagTable    string  `yaml:"tag_table"`
		RateLimit   float64 `yaml:"rate_limit"`
	} `yaml:"store"`

	Editor struct {
		TagDelimiter string `yaml:"tag_delimiter"`
	} `yaml:"editor"`

	Server struct {
		Addr string `yaml:"addr"`
		// AllowedOrigins lists the pages allowed to open the editor websocket.
		// Empty accepts any origin.
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/inkwell/config.yaml"),
			"/etc/inkwell/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Credentials never live in the binary; env wins over the file.
	mergeWithEnv(&config)

	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Uploader.Endpoint == "" {
		config.Uploader.Endpoint = "https://api.cloudinary.com/v1_1"
	}
	if config.Uploader.RateLimit == 0 {
		config.Uploader.RateLimit = 2.0
	}

	if config.Store.Backend == "" {
		config.Store.Backend = "airtable"
	}
	if config.Store.BaseURL == "" {
		config.Store.BaseURL = "https://api.airtable.com/v0"
	}
	if config.Store.EntryTable == "" {
		config.Store.EntryTable = "Entries"
	}
	if config.Store.ImageTable == "" {
		config.Store.ImageTable = "Images"
	}
	if config.Store.TagTable == "" {
		config.Store.TagTable = "Tags"
	}
	if config.Store.RateLimit == 0 {
		config.Store.RateLimit = 5.0
	}

	if config.Editor.TagDelimiter == "" {
		config.Editor.TagDelimiter = ","
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

func mergeWithEnv(config *Config) {
	if v := os.Getenv("CLOUDINARY_CLOUD_NAME"); v != "" {
		config.Uploader.CloudName = v
	}
	if v := os.Getenv("CLOUDINARY_UPLOAD_PRESET"); v != "" {
		config.Uploader.UploadPreset = v
	}
	if v := os.Getenv("RECORDSTORE_API_KEY"); v != "" {
		config.Store.APIKey = v
	}
	if v := os.Getenv("RECORDSTORE_BASE_ID"); v != "" {
		config.Store.BaseID = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		config.Store.DatabaseURL = v
	}
	if v := os.Getenv("INKWELL_LOG_LEVEL"); v != "" {
		config.Log.Level = v
	}
}
