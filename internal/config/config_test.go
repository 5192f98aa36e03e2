package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, c *Config)
	}{
		{
			name:    "uses defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "0.0.0.0:8080", c.ServerAddress())
				assert.Equal(t, 30*time.Second, c.RequestTimeout)
				assert.Equal(t, 4096, c.MaxImageDimension)
				assert.Equal(t, "standard", c.PipelineMode)
				assert.Equal(t, "pigo", c.LandmarkProvider)
				assert.Equal(t, "http", c.TemplateStorage)
				assert.False(t, c.FallbackToTemplate)
			},
		},
		{
			name: "reads overrides",
			envVars: map[string]string{
				"PORT":                   "9090",
				"REQUEST_TIMEOUT":        "5s",
				"PIPELINE_MODE":          "gentle",
				"FALLBACK_TO_TEMPLATE":   "true",
				"LANDMARK_PROVIDER":      "static",
				"TEMPLATE_ALLOWED_HOSTS": "cdn.example.com,kits.example.com",
				"MAX_WORKERS":            "2",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "9090", c.Port)
				assert.Equal(t, 5*time.Second, c.RequestTimeout)
				assert.Equal(t, "gentle", c.PipelineMode)
				assert.True(t, c.FallbackToTemplate)
				assert.Equal(t, "static", c.LandmarkProvider)
				assert.Equal(t, []string{"cdn.example.com", "kits.example.com"}, c.TemplateHosts)
				assert.Equal(t, 2, c.MaxWorkers)
			},
		},
		{
			name:    "rejects bad port",
			envVars: map[string]string{"PORT": "99999"},
			wantErr: true,
		},
		{
			name:    "rejects unparsable duration",
			envVars: map[string]string{"REQUEST_TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name:    "rejects unknown mode",
			envVars: map[string]string{"PIPELINE_MODE": "cartoon"},
			wantErr: true,
		},
		{
			name:    "rejects unknown provider",
			envVars: map[string]string{"LANDMARK_PROVIDER": "dlib"},
			wantErr: true,
		},
		{
			name:    "azure needs credentials",
			envVars: map[string]string{"TEMPLATE_STORAGE": "azure"},
			wantErr: true,
		},
		{
			name: "azure with credentials",
			envVars: map[string]string{
				"TEMPLATE_STORAGE":      "azure",
				"AZURE_STORAGE_ACCOUNT": "kits",
				"AZURE_STORAGE_KEY":     "a2V5",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "templates", c.AzureContainer)
			},
		},
		{
			name:    "rejects zero dimension",
			envVars: map[string]string{"MAX_IMAGE_DIMENSION": "0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := LoadFromEnv()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestServerAddress_IPv6(t *testing.T) {
	c := &Config{Host: " ::1 ", Port: "8080"}
	assert.Equal(t, "[::1]:8080", c.ServerAddress())
}
