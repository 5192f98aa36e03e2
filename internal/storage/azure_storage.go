package storage

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
)

// AzureConfig locates the template container
type AzureConfig struct {
	AccountName string
	AccountKey  string
	Container   string
	Limits      Limits
}

type azureStorage struct {
	client    *azblob.Client
	container string
	limits    Limits
}

// NewAzureStorage creates a fetcher that reads templates from Azure Blob Storage
func NewAzureStorage(cfg AzureConfig) (ImageFetcher, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, apperrors.NewValidationError("azure account name and key are required", nil)
	}

	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid azure credentials", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create azure blob client", err)
	}

	return &azureStorage{client: client, container: cfg.Container, limits: cfg.Limits}, nil
}

// FetchImage downloads a template blob. ref is either a blob name inside the
// configured container or a full https://<account>.blob.core.windows.net/<container>/<blob> URL.
func (s *azureStorage) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	container, blob, err := parseBlobRef(ref, s.container)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, apperrors.NewNotFoundError("template blob not found", err)
		}
		return nil, apperrors.NewNetworkError("template blob download failed", err)
	}
	body := resp.Body
	defer body.Close()

	img, _, err := DecodeImage(body, s.limits)
	return img, err
}

// parseBlobRef splits a template reference into container and blob name
func parseBlobRef(ref, defaultContainer string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", apperrors.NewValidationError("template reference is empty", nil)
	}

	if !strings.Contains(ref, "://") {
		if defaultContainer == "" {
			return "", "", apperrors.NewValidationError("no container configured for blob name", fmt.Errorf("ref %q", ref))
		}
		return defaultContainer, strings.TrimPrefix(ref, "/"), nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", "", apperrors.NewValidationError("invalid blob URL", err)
	}
	if u.Scheme != "https" || !strings.HasSuffix(u.Host, ".blob.core.windows.net") {
		return "", "", apperrors.NewValidationError("not an azure blob URL", fmt.Errorf("host %q", u.Host))
	}

	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperrors.NewValidationError("blob URL must name a container and a blob", fmt.Errorf("path %q", u.Path))
	}
	return parts[0], parts[1], nil
}
