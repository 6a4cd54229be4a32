package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/udovin/cloudctl/internal/pkg/hash"
	"github.com/udovin/cloudctl/internal/sas"
)

// LocalStorage stores every container as directory in Dir.
type LocalStorage struct {
	Dir string
}

// NewLocalStorage returns storage rooted at dir.
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{Dir: dir}
}

func (s *LocalStorage) CreateContainer(
	ctx context.Context, name string, access PublicAccess,
) (Container, error) {
	if err := ValidateContainerName(name); err != nil {
		return Container{}, err
	}
	if err := os.MkdirAll(s.Dir, os.ModePerm); err != nil {
		return Container{}, err
	}
	if err := os.Mkdir(s.containerPath(name), os.ModePerm); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Container{}, fmt.Errorf("container %q: %w", name, ErrExist)
		}
		return Container{}, err
	}
	container := Container{
		Name:         name,
		PublicAccess: access,
		LastModified: time.Now().UTC(),
	}
	if err := s.writeMetadata(container); err != nil {
		_ = os.RemoveAll(s.containerPath(name))
		return Container{}, err
	}
	return container, nil
}

func (s *LocalStorage) GetContainer(ctx context.Context, name string) (Container, error) {
	if err := ValidateContainerName(name); err != nil {
		return Container{}, err
	}
	return s.readMetadata(name)
}

func (s *LocalStorage) ListContainers(ctx context.Context, prefix string) ([]Container, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var containers []Container
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		if ValidateContainerName(entry.Name()) != nil {
			continue
		}
		container, err := s.readMetadata(entry.Name())
		if err != nil {
			if errors.Is(err, ErrNotExist) {
				continue
			}
			return nil, err
		}
		containers = append(containers, container)
	}
	return containers, nil
}

func (s *LocalStorage) SetContainerACL(
	ctx context.Context, name string, access PublicAccess,
) (Container, error) {
	return s.updateContainer(name, func(c *Container) error {
		c.PublicAccess = access
		return nil
	})
}

func (s *LocalStorage) SetContainerPolicies(
	ctx context.Context, name string, policies map[string]sas.AccessPolicy,
) (Container, error) {
	if err := validatePolicies(policies); err != nil {
		return Container{}, err
	}
	return s.updateContainer(name, func(c *Container) error {
		c.Policies = normalizePolicies(policies)
		return nil
	})
}

func (s *LocalStorage) DeleteContainer(ctx context.Context, name string) error {
	if _, err := s.GetContainer(ctx, name); err != nil {
		return err
	}
	return os.RemoveAll(s.containerPath(name))
}

func (s *LocalStorage) UploadBlob(
	ctx context.Context, container, name string, r io.Reader,
) (Blob, error) {
	if _, err := s.GetContainer(ctx, container); err != nil {
		return Blob{}, err
	}
	if err := ValidateBlobName(name); err != nil {
		return Blob{}, err
	}
	blobPath := s.blobPath(container, name)
	if err := os.MkdirAll(filepath.Dir(blobPath), os.ModePerm); err != nil {
		return Blob{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(blobPath), uploadPrefix)
	if err != nil {
		return Blob{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	reader, digest := hash.TeeMD5(r)
	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		return Blob{}, err
	}
	if err := tmp.Close(); err != nil {
		return Blob{}, err
	}
	if err := os.Rename(tmp.Name(), blobPath); err != nil {
		return Blob{}, err
	}
	return Blob{
		Container:    container,
		Name:         name,
		Size:         digest().Size,
		MD5:          digest().Hex(),
		LastModified: time.Now().UTC(),
	}, nil
}

func (s *LocalStorage) DownloadBlob(
	ctx context.Context, container, name string,
) (io.ReadCloser, error) {
	if err := s.checkBlob(container, name); err != nil {
		return nil, err
	}
	file, err := os.Open(s.blobPath(container, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blob %q: %w", name, ErrNotExist)
		}
		return nil, err
	}
	return file, nil
}

func (s *LocalStorage) GetBlob(ctx context.Context, container, name string) (Blob, error) {
	if err := s.checkBlob(container, name); err != nil {
		return Blob{}, err
	}
	return s.statBlob(container, name)
}

func (s *LocalStorage) ListBlobs(
	ctx context.Context, container, prefix string,
) ([]Blob, error) {
	if _, err := s.GetContainer(ctx, container); err != nil {
		return nil, err
	}
	root := s.containerPath(container)
	var blobs []Blob
	if err := filepath.WalkDir(root, func(file string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, file)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if name == metadataName || strings.HasPrefix(path.Base(name), uploadPrefix) {
			return nil
		}
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		blob, err := s.statBlob(container, name)
		if err != nil {
			return err
		}
		blobs = append(blobs, blob)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(blobs, func(i, j int) bool {
		return blobs[i].Name < blobs[j].Name
	})
	return blobs, nil
}

func (s *LocalStorage) DeleteBlob(ctx context.Context, container, name string) error {
	if err := s.checkBlob(container, name); err != nil {
		return err
	}
	if err := os.Remove(s.blobPath(container, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("blob %q: %w", name, ErrNotExist)
		}
		return err
	}
	return nil
}

func (s *LocalStorage) checkBlob(container, name string) error {
	if _, err := s.readMetadata(container); err != nil {
		return err
	}
	return ValidateBlobName(name)
}

func (s *LocalStorage) statBlob(container, name string) (Blob, error) {
	file, err := os.Open(s.blobPath(container, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Blob{}, fmt.Errorf("blob %q: %w", name, ErrNotExist)
		}
		return Blob{}, err
	}
	defer func() { _ = file.Close() }()
	stat, err := file.Stat()
	if err != nil {
		return Blob{}, err
	}
	if stat.IsDir() {
		return Blob{}, fmt.Errorf("blob %q: %w", name, ErrNotExist)
	}
	digest, err := hash.CalculateMD5(file)
	if err != nil {
		return Blob{}, err
	}
	return Blob{
		Container:    container,
		Name:         name,
		Size:         digest.Size,
		MD5:          digest.Hex(),
		LastModified: stat.ModTime().UTC(),
	}, nil
}

func (s *LocalStorage) updateContainer(
	name string, fn func(*Container) error,
) (Container, error) {
	if err := ValidateContainerName(name); err != nil {
		return Container{}, err
	}
	container, err := s.readMetadata(name)
	if err != nil {
		return Container{}, err
	}
	if err := fn(&container); err != nil {
		return Container{}, err
	}
	container.LastModified = time.Now().UTC()
	if err := s.writeMetadata(container); err != nil {
		return Container{}, err
	}
	return container, nil
}

func (s *LocalStorage) readMetadata(name string) (Container, error) {
	bytes, err := os.ReadFile(filepath.Join(s.containerPath(name), metadataName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Container{}, fmt.Errorf("container %q: %w", name, ErrNotExist)
		}
		return Container{}, err
	}
	var container Container
	if err := json.Unmarshal(bytes, &container); err != nil {
		return Container{}, fmt.Errorf("cannot read container %q metadata: %w", name, err)
	}
	container.Name = name
	return container, nil
}

func (s *LocalStorage) writeMetadata(container Container) error {
	bytes, err := json.Marshal(container)
	if err != nil {
		return err
	}
	return os.WriteFile(
		filepath.Join(s.containerPath(container.Name), metadataName),
		bytes, 0666,
	)
}

func (s *LocalStorage) containerPath(name string) string {
	return filepath.Join(s.Dir, name)
}

func (s *LocalStorage) blobPath(container, name string) string {
	return filepath.Join(s.containerPath(container), filepath.FromSlash(name))
}

var _ Storage = (*LocalStorage)(nil)
