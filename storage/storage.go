package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("object not found")

// Storage interface for diagnostic trace archive operations
type Storage interface {
	// Upload stores a trace document and returns its storage path
	Upload(ctx context.Context, traceID uuid.UUID, data io.Reader) (string, error)

	// Download retrieves a trace document by id
	Download(ctx context.Context, traceID uuid.UUID) (io.ReadCloser, error)

	// Delete removes a trace document by id
	Delete(ctx context.Context, traceID uuid.UUID) error
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeNone  StorageType = "none"
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type         StorageType
	LocalPath    string // For local storage
	S3Bucket     string // For S3 storage
	S3Region     string // For S3 storage
	S3Prefix     string
	AWSAccessKey string
	AWSSecretKey string
}

// NewStorage creates a new storage instance based on configuration.
// StorageTypeNone returns a nil Storage and no error.
func NewStorage(cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeNone, "":
		return nil, nil
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3 bucket is required for S3 storage")
		}
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// tracePath is the storage path for a trace, sharded by the first two id characters
func tracePath(traceID uuid.UUID) string {
	id := traceID.String()
	return fmt.Sprintf("%s/%s.json", id[:2], id)
}
