package container

import (
	"fmt"
	"net/http"

	"github.com/anime-shed/jersey-faceswap-go/internal/config"
	"github.com/anime-shed/jersey-faceswap-go/internal/factory"
	"github.com/anime-shed/jersey-faceswap-go/internal/landmark"
	"github.com/anime-shed/jersey-faceswap-go/internal/logger"
	"github.com/anime-shed/jersey-faceswap-go/internal/observer"
	"github.com/anime-shed/jersey-faceswap-go/internal/repository"
	"github.com/anime-shed/jersey-faceswap-go/internal/service"
	"github.com/anime-shed/jersey-faceswap-go/internal/transport"
	"github.com/anime-shed/jersey-faceswap-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	provider        landmark.Provider
	templates       repository.TemplateRepository
	events          *observer.EventPublisher
	metrics         *observer.MetricsObserver
	faceSwapService service.FaceSwapService
	handler         http.Handler
}

// NewContainer builds the dependency graph. The landmark provider is owned
// by the container and released by Close.
func NewContainer(cfg *config.Config) (*Container, error) {
	logger.SetLevel(cfg.LogLevel)

	components := factory.NewComponentFactory(cfg)

	fetcher, err := components.StorageFactory.CreateStorage(factory.StorageType(cfg.TemplateStorage))
	if err != nil {
		return nil, fmt.Errorf("failed to create template storage: %w", err)
	}
	refValidator, err := components.StorageFactory.CreateValidator(factory.StorageType(cfg.TemplateStorage))
	if err != nil {
		return nil, fmt.Errorf("failed to create template validator: %w", err)
	}
	templates := repository.NewTemplateRepository(fetcher, refValidator)

	provider, err := components.ProviderFactory.CreateProvider(factory.ProviderType(cfg.LandmarkProvider))
	if err != nil {
		return nil, fmt.Errorf("failed to create landmark provider: %w", err)
	}

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	thresholds := validation.DefaultInputThresholds()
	thresholds.MaxDimension = cfg.MaxImageDimension

	faceSwapService := service.NewFaceSwapService(
		templates,
		provider,
		events,
		validation.NewInputValidatorWithThresholds(thresholds),
		service.Config{
			DefaultMode:        cfg.PipelineMode,
			MaxDimension:       cfg.MaxImageDimension,
			MaxImageBytes:      cfg.MaxImageBytes,
			MaxWorkers:         cfg.MaxWorkers,
			FallbackToTemplate: cfg.FallbackToTemplate,
		},
	)

	return &Container{
		config:          cfg,
		provider:        provider,
		templates:       templates,
		events:          events,
		metrics:         metrics,
		faceSwapService: faceSwapService,
		handler:         transport.NewHandler(faceSwapService, metrics, cfg),
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the face swap use case
func (c *Container) Service() service.FaceSwapService {
	return c.faceSwapService
}

// Close drains pending events and releases the landmark provider
func (c *Container) Close() error {
	c.events.Wait()
	return c.provider.Close()
}
