package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/anime-shed/jersey-faceswap-go/internal/strategy"
)

type Config struct {
	// Server
	Host               string        `envconfig:"HOST" default:"0.0.0.0"`
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ImageFetchTimeout  time.Duration `envconfig:"IMAGE_FETCH_TIMEOUT" default:"15s"`
	MaxRequestBodySize int64         `envconfig:"MAX_REQUEST_BODY_SIZE" default:"41943040"` // 40MB, two uploads
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`

	// Pipeline
	MaxImageDimension  int    `envconfig:"MAX_IMAGE_DIMENSION" default:"4096"`
	MaxImageBytes      int64  `envconfig:"MAX_IMAGE_BYTES" default:"20971520"`
	PipelineMode       string `envconfig:"PIPELINE_MODE" default:"standard"`
	MaxWorkers         int    `envconfig:"MAX_WORKERS" default:"0"`
	FallbackToTemplate bool   `envconfig:"FALLBACK_TO_TEMPLATE" default:"false"`

	// Landmarks
	LandmarkProvider string `envconfig:"LANDMARK_PROVIDER" default:"pigo"`
	CascadeDir       string `envconfig:"CASCADE_DIR" default:"./cascade"`

	// Templates
	TemplateStorage  string   `envconfig:"TEMPLATE_STORAGE" default:"http"`
	TemplateDir      string   `envconfig:"TEMPLATE_DIR" default:"./templates"`
	TemplateHosts    []string `envconfig:"TEMPLATE_ALLOWED_HOSTS"`
	AzureAccountName string   `envconfig:"AZURE_STORAGE_ACCOUNT"`
	AzureAccountKey  string   `envconfig:"AZURE_STORAGE_KEY"`
	AzureContainer   string   `envconfig:"AZURE_STORAGE_CONTAINER" default:"templates"`
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// LoadFromEnv reads the environment and validates the result
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and cross-field requirements
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be > 0 (got %d)", c.MaxImageBytes)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s)",
			c.RequestTimeout, c.ImageFetchTimeout)
	}
	if c.MaxImageDimension <= 0 {
		return fmt.Errorf("MAX_IMAGE_DIMENSION must be > 0 (got %d)", c.MaxImageDimension)
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("MAX_WORKERS must be >= 0 (got %d)", c.MaxWorkers)
	}
	if _, err := strategy.Lookup(c.PipelineMode); err != nil {
		return fmt.Errorf("invalid PIPELINE_MODE: %w", err)
	}

	switch c.LandmarkProvider {
	case "pigo":
		if strings.TrimSpace(c.CascadeDir) == "" {
			return fmt.Errorf("CASCADE_DIR is required for the pigo landmark provider")
		}
	case "static":
	default:
		return fmt.Errorf("invalid LANDMARK_PROVIDER: %q", c.LandmarkProvider)
	}

	switch c.TemplateStorage {
	case "http":
	case "local":
		if strings.TrimSpace(c.TemplateDir) == "" {
			return fmt.Errorf("TEMPLATE_DIR is required for local template storage")
		}
	case "azure":
		if c.AzureAccountName == "" || c.AzureAccountKey == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY are required for azure template storage")
		}
	default:
		return fmt.Errorf("invalid TEMPLATE_STORAGE: %q", c.TemplateStorage)
	}
	return nil
}
