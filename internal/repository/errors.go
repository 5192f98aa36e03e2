package repository

import "errors"

var (
	// ErrInvalidTemplateRef indicates an unusable template reference
	ErrInvalidTemplateRef = errors.New("invalid template reference")

	// ErrRepositoryUnavailable indicates the repository has no backing storage
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
