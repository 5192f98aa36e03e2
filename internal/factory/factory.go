package factory

import (
	"fmt"
	"strings"

	"github.com/anime-shed/jersey-faceswap-go/internal/config"
	"github.com/anime-shed/jersey-faceswap-go/internal/landmark"
	"github.com/anime-shed/jersey-faceswap-go/internal/repository"
	"github.com/anime-shed/jersey-faceswap-go/internal/storage"
	"github.com/anime-shed/jersey-faceswap-go/pkg/validation"
)

// ProviderType represents different landmark providers
type ProviderType string

const (
	// PigoProvider runs the pure-Go cascade detector
	PigoProvider ProviderType = "pigo"
	// StaticProvider expects landmarks computed by the client
	StaticProvider ProviderType = "static"
)

// StorageType represents different types of template storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based template fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// ProviderFactory creates landmark providers
type ProviderFactory interface {
	CreateProvider(providerType ProviderType) (landmark.Provider, error)
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
	CreateValidator(storageType StorageType) (repository.RefValidator, error)
}

type providerFactory struct {
	cascadeDir string
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(cfg *config.Config) ProviderFactory {
	return &providerFactory{cascadeDir: cfg.CascadeDir}
}

// CreateProvider creates a provider based on the specified type
func (f *providerFactory) CreateProvider(providerType ProviderType) (landmark.Provider, error) {
	switch providerType {
	case PigoProvider:
		p, err := landmark.NewPigoProvider(landmark.DefaultPigoConfig(f.cascadeDir))
		if err != nil {
			return nil, err
		}
		return p, nil
	case StaticProvider:
		return landmark.NewStaticProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported landmark provider: %s", providerType)
	}
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

func (f *storageFactory) limits() storage.Limits {
	return storage.Limits{
		MaxBytes:     f.cfg.MaxImageBytes,
		MaxDimension: f.cfg.MaxImageDimension,
	}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		httpCfg := storage.DefaultHTTPConfig()
		httpCfg.Timeout = f.cfg.ImageFetchTimeout
		httpCfg.Limits = f.limits()
		return storage.NewHTTPImageFetcher(httpCfg), nil
	case AzureStorage:
		return storage.NewAzureStorage(storage.AzureConfig{
			AccountName: f.cfg.AzureAccountName,
			AccountKey:  f.cfg.AzureAccountKey,
			Container:   f.cfg.AzureContainer,
			Limits:      f.limits(),
		})
	case LocalStorage:
		return storage.NewLocalStorage(f.cfg.TemplateDir, f.limits())
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// CreateValidator returns the reference validator matching a storage backend
func (f *storageFactory) CreateValidator(storageType StorageType) (repository.RefValidator, error) {
	switch storageType {
	case HTTPStorage:
		var hosts []string
		for _, h := range f.cfg.TemplateHosts {
			if h = strings.TrimSpace(h); h != "" {
				hosts = append(hosts, h)
			}
		}
		return validation.NewURLValidatorWithOptions([]string{"http", "https"}, hosts), nil
	case AzureStorage, LocalStorage:
		return validation.NewNameValidator(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	ProviderFactory ProviderFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		ProviderFactory: NewProviderFactory(cfg),
		StorageFactory:  NewStorageFactory(cfg),
	}
}
