package cmdlet

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/udovin/cloudctl/internal/sas"
	"github.com/udovin/cloudctl/internal/storage"
)

// UploadBlob uploads local file as blob.
type UploadBlob struct {
	File      string
	Container string
	// Blob contains blob name, base name of File by default.
	Blob    string
	Force   bool
	Storage storage.Storage
	Runtime Runtime
	// Confirmation is asked before existing blob is overwritten.
	Confirmation Confirmation
}

func (c *UploadBlob) Execute(ctx context.Context) error {
	name := c.Blob
	if name == "" {
		name = filepath.Base(c.File)
	}
	if _, err := c.Storage.GetBlob(ctx, c.Container, name); err == nil {
		if !shouldProcess(
			c.Force, c.Confirmation, "Overwrite blob",
			fmt.Sprintf("Blob %q already exists in container %q.", name, c.Container),
		) {
			return nil
		}
	}
	file, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()
	blob, err := c.Storage.UploadBlob(ctx, c.Container, name, file)
	if err != nil {
		return err
	}
	return c.Runtime.WriteObject(blob)
}

// DownloadBlob downloads blob to local file.
type DownloadBlob struct {
	Container string
	Blob      string
	// Destination contains file or directory path.
	Destination string
	Force       bool
	Storage     storage.Storage
	Runtime     Runtime
	// Confirmation is asked before existing file is overwritten.
	Confirmation Confirmation
}

func (c *DownloadBlob) Execute(ctx context.Context) error {
	blob, err := c.Storage.GetBlob(ctx, c.Container, c.Blob)
	if err != nil {
		return err
	}
	path := c.Destination
	if path == "" {
		path = "."
	}
	if stat, err := os.Stat(path); err == nil && stat.IsDir() {
		path = filepath.Join(path, filepath.FromSlash(c.Blob))
	}
	if _, err := os.Stat(path); err == nil {
		if !shouldProcess(
			c.Force, c.Confirmation, "Overwrite file",
			fmt.Sprintf("File %q already exists.", path),
		) {
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	reader, err := c.Storage.DownloadBlob(ctx, c.Container, c.Blob)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return c.Runtime.WriteObject(blob)
}

// GetBlob writes blob with Name or all blobs with Prefix.
type GetBlob struct {
	Container string
	Blob      string
	Prefix    string
	Storage   storage.Storage
	Runtime   Runtime
}

func (c *GetBlob) Execute(ctx context.Context) error {
	if c.Blob != "" {
		blob, err := c.Storage.GetBlob(ctx, c.Container, c.Blob)
		if err != nil {
			return err
		}
		return c.Runtime.WriteObject(blob)
	}
	blobs, err := c.Storage.ListBlobs(ctx, c.Container, c.Prefix)
	if err != nil {
		return err
	}
	if blobs == nil {
		blobs = []storage.Blob{}
	}
	return c.Runtime.WriteObject(blobs)
}

// RemoveBlob removes blob.
type RemoveBlob struct {
	Container    string
	Blob         string
	Force        bool
	PassThru     bool
	Storage      storage.Storage
	Runtime      Runtime
	Confirmation Confirmation
}

func (c *RemoveBlob) Execute(ctx context.Context) error {
	if !shouldProcess(
		c.Force, c.Confirmation, RemoveBlobCaption,
		fmt.Sprintf("Blob %q will be removed from container %q.", c.Blob, c.Container),
	) {
		return nil
	}
	if err := c.Storage.DeleteBlob(ctx, c.Container, c.Blob); err != nil {
		return err
	}
	if c.PassThru {
		return c.Runtime.WriteObject(true)
	}
	return nil
}

// NewBlobSASToken writes shared access signature for blob.
type NewBlobSASToken struct {
	SASToken
	Container string
	Blob      string
}

func (c *NewBlobSASToken) Execute(ctx context.Context) error {
	container, err := c.Storage.GetContainer(ctx, c.Container)
	if err != nil {
		return err
	}
	if _, err := c.Storage.GetBlob(ctx, c.Container, c.Blob); err != nil {
		return err
	}
	resource := sas.Resource{Container: c.Container, Blob: c.Blob}
	policy, err := c.newPolicy(container, resource)
	if err != nil {
		return err
	}
	return c.write(resource, policy)
}
