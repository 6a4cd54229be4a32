// Package storage implements containers and blobs on top of local
// filesystem or S3 compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/udovin/cloudctl/internal/config"
	"github.com/udovin/cloudctl/internal/sas"
)

var (
	ErrNotExist    = errors.New("resource does not exist")
	ErrExist       = errors.New("resource already exists")
	ErrInvalidName = errors.New("invalid resource name")
)

// PublicAccess represents anonymous access level of container.
type PublicAccess string

const (
	// PublicAccessOff disables anonymous access.
	PublicAccessOff PublicAccess = "off"
	// PublicAccessBlob allows anonymous reads of blobs.
	PublicAccessBlob PublicAccess = "blob"
	// PublicAccessContainer allows anonymous reads of blobs and listing.
	PublicAccessContainer PublicAccess = "container"
)

// ParsePublicAccess parses access level ignoring case.
//
// Empty string is treated as PublicAccessOff.
func ParsePublicAccess(s string) (PublicAccess, error) {
	switch strings.ToLower(s) {
	case "", string(PublicAccessOff):
		return PublicAccessOff, nil
	case string(PublicAccessBlob):
		return PublicAccessBlob, nil
	case string(PublicAccessContainer):
		return PublicAccessContainer, nil
	default:
		return "", fmt.Errorf(
			"invalid public access level %q (expected %q, %q or %q)",
			s, PublicAccessOff, PublicAccessBlob, PublicAccessContainer,
		)
	}
}

// Container represents named group of blobs.
type Container struct {
	Name         string                      `json:"name"`
	PublicAccess PublicAccess                `json:"public_access"`
	LastModified time.Time                   `json:"last_modified"`
	Policies     map[string]sas.AccessPolicy `json:"policies,omitempty"`
}

// Blob represents object stored in container.
type Blob struct {
	Container    string    `json:"container"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	MD5          string    `json:"md5,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Storage represents storage of containers and blobs.
type Storage interface {
	CreateContainer(ctx context.Context, name string, access PublicAccess) (Container, error)
	GetContainer(ctx context.Context, name string) (Container, error)
	// ListContainers returns containers with names starting with prefix
	// sorted by name.
	ListContainers(ctx context.Context, prefix string) ([]Container, error)
	SetContainerACL(ctx context.Context, name string, access PublicAccess) (Container, error)
	// SetContainerPolicies replaces stored access policies of container.
	SetContainerPolicies(ctx context.Context, name string, policies map[string]sas.AccessPolicy) (Container, error)
	// DeleteContainer deletes container with all its blobs.
	DeleteContainer(ctx context.Context, name string) error
	// UploadBlob creates or overwrites blob. Container should exist.
	UploadBlob(ctx context.Context, container, name string, r io.Reader) (Blob, error)
	DownloadBlob(ctx context.Context, container, name string) (io.ReadCloser, error)
	GetBlob(ctx context.Context, container, name string) (Blob, error)
	// ListBlobs returns blobs with names starting with prefix sorted by name.
	ListBlobs(ctx context.Context, container, prefix string) ([]Blob, error)
	DeleteBlob(ctx context.Context, container, name string) error
}

// NewStorage creates storage for specified config.
func NewStorage(cfg config.Storage) (Storage, error) {
	if cfg.Options != nil {
		if err := cfg.Options.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s storage options: %w", cfg.Options.Driver(), err)
		}
	}
	switch opts := cfg.Options.(type) {
	case config.LocalStorageOptions:
		return NewLocalStorage(opts.FilesDir), nil
	case config.S3StorageOptions:
		return NewS3Storage(opts)
	default:
		return nil, fmt.Errorf("unsupported storage options type %T", cfg.Options)
	}
}

// metadataName contains name of container metadata object.
const metadataName = ".container.json"

const maxPolicies = 5

// uploadPrefix starts names of temporary files of local uploads.
const uploadPrefix = ".upload-"

var containerNameRegexp = regexp.MustCompile(`^[a-z0-9]([a-z0-9\-]*[a-z0-9])?$`)

// ValidateContainerName checks container naming rules.
func ValidateContainerName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("%w: container name %q should contain from 3 to 63 characters", ErrInvalidName, name)
	}
	if !containerNameRegexp.MatchString(name) {
		return fmt.Errorf("%w: container name %q should contain only lowercase letters, digits and hyphens", ErrInvalidName, name)
	}
	if strings.Contains(name, "--") {
		return fmt.Errorf("%w: container name %q should not contain consecutive hyphens", ErrInvalidName, name)
	}
	return nil
}

// ValidateBlobName checks blob naming rules.
func ValidateBlobName(name string) error {
	if len(name) == 0 || len(name) > 1024 {
		return fmt.Errorf("%w: blob name should contain from 1 to 1024 characters", ErrInvalidName)
	}
	if name == metadataName || strings.HasPrefix(path.Base(name), uploadPrefix) {
		return fmt.Errorf("%w: blob name %q is reserved", ErrInvalidName, name)
	}
	for _, part := range strings.Split(name, "/") {
		switch part {
		case "", ".", "..":
			return fmt.Errorf("%w: blob name %q has invalid path segment %q", ErrInvalidName, name, part)
		}
	}
	if strings.ContainsRune(name, '\\') {
		return fmt.Errorf("%w: blob name %q should not contain backslash", ErrInvalidName, name)
	}
	return nil
}

func validatePolicies(policies map[string]sas.AccessPolicy) error {
	if len(policies) > maxPolicies {
		return fmt.Errorf("container can have at most %d stored policies", maxPolicies)
	}
	for id, policy := range policies {
		if id == "" || len(id) > 64 {
			return fmt.Errorf("invalid policy identifier %q", id)
		}
		if policy.ID != "" && policy.ID != id {
			return fmt.Errorf("policy identifier %q does not match key %q", policy.ID, id)
		}
	}
	return nil
}

func normalizePolicies(policies map[string]sas.AccessPolicy) map[string]sas.AccessPolicy {
	if len(policies) == 0 {
		return nil
	}
	result := make(map[string]sas.AccessPolicy, len(policies))
	for id, policy := range policies {
		policy.ID = id
		result[id] = policy
	}
	return result
}
