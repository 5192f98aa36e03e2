package factory

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/jersey-faceswap-go/internal/config"
	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		ImageFetchTimeout: 5 * time.Second,
		MaxImageDimension: 4096,
		MaxImageBytes:     1 << 20,
		CascadeDir:        t.TempDir(),
		TemplateDir:       t.TempDir(),
		TemplateHosts:     []string{" cdn.example.com ", ""},
		AzureContainer:    "templates",
	}
}

func TestCreateProvider(t *testing.T) {
	f := NewProviderFactory(testConfig(t))

	p, err := f.CreateProvider(StaticProvider)
	require.NoError(t, err)
	faces, err := p.DetectFaces(context.Background(), image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	assert.Empty(t, faces)
	assert.NoError(t, p.Close())

	// the temp dir holds no cascades
	_, err = f.CreateProvider(PigoProvider)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal), "got %v", err)

	_, err = f.CreateProvider("dlib")
	assert.Error(t, err)
}

func TestCreateStorage(t *testing.T) {
	cfg := testConfig(t)
	f := NewStorageFactory(cfg)

	for _, st := range []StorageType{HTTPStorage, LocalStorage} {
		s, err := f.CreateStorage(st)
		require.NoError(t, err, st)
		assert.NotNil(t, s)
	}

	_, err := f.CreateStorage(AzureStorage)
	assert.Error(t, err, "azure without credentials must fail")

	cfg.AzureAccountName = "kits"
	cfg.AzureAccountKey = "a2V5"
	s, err := f.CreateStorage(AzureStorage)
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = f.CreateStorage("ftp")
	assert.Error(t, err)
}

func TestCreateValidator(t *testing.T) {
	f := NewStorageFactory(testConfig(t))

	v, err := f.CreateValidator(HTTPStorage)
	require.NoError(t, err)
	assert.NoError(t, v.ValidateTemplateRef("https://cdn.example.com/home.png"))
	assert.Error(t, v.ValidateTemplateRef("https://other.example.com/home.png"))

	v, err = f.CreateValidator(LocalStorage)
	require.NoError(t, err)
	assert.NoError(t, v.ValidateTemplateRef("kits/home.png"))
	assert.Error(t, v.ValidateTemplateRef("../home.png"))

	_, err = f.CreateValidator("ftp")
	assert.Error(t, err)
}
