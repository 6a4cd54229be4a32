package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"

	"github.com/udovin/cloudctl/internal/config"
	"github.com/udovin/cloudctl/internal/perms"
	"github.com/udovin/cloudctl/internal/sas"
)

func testStorage(t testing.TB, s Storage) {
	ctx := context.Background()
	if _, err := s.GetContainer(ctx, "images"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Expected %v, got %v", ErrNotExist, err)
	}
	container, err := s.CreateContainer(ctx, "images", PublicAccessOff)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if container.Name != "images" || container.PublicAccess != PublicAccessOff {
		t.Fatalf("Unexpected container: %+v", container)
	}
	if _, err := s.CreateContainer(ctx, "images", PublicAccessBlob); !errors.Is(err, ErrExist) {
		t.Fatalf("Expected %v, got %v", ErrExist, err)
	}
	if _, err := s.CreateContainer(ctx, "Bad_Name", PublicAccessOff); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("Expected %v, got %v", ErrInvalidName, err)
	}
	if _, err := s.CreateContainer(ctx, "documents", PublicAccessContainer); err != nil {
		t.Fatal("Error:", err)
	}
	containers, err := s.ListContainers(ctx, "")
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(containers) != 2 || containers[0].Name != "documents" || containers[1].Name != "images" {
		t.Fatalf("Unexpected containers: %+v", containers)
	}
	containers, err = s.ListContainers(ctx, "im")
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(containers) != 1 || containers[0].Name != "images" {
		t.Fatalf("Unexpected containers: %+v", containers)
	}
	container, err = s.SetContainerACL(ctx, "images", PublicAccessBlob)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if container.PublicAccess != PublicAccessBlob {
		t.Fatalf("Expected %q, got %q", PublicAccessBlob, container.PublicAccess)
	}
	policy := sas.AccessPolicy{
		Expiry:      time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Permissions: perms.NewPermissionSet(perms.Read, perms.List),
	}
	if _, err := s.SetContainerPolicies(ctx, "images", map[string]sas.AccessPolicy{
		"readers": policy,
	}); err != nil {
		t.Fatal("Error:", err)
	}
	container, err = s.GetContainer(ctx, "images")
	if err != nil {
		t.Fatal("Error:", err)
	}
	if container.PublicAccess != PublicAccessBlob {
		t.Fatalf("Expected %q, got %q", PublicAccessBlob, container.PublicAccess)
	}
	stored, ok := container.Policies["readers"]
	if !ok {
		t.Fatalf("Policy %q is not stored", "readers")
	}
	if stored.ID != "readers" || !stored.Expiry.Equal(policy.Expiry) ||
		!stored.Permissions.Equal(policy.Permissions) {
		t.Fatalf("Unexpected policy: %+v", stored)
	}
	if _, err := s.UploadBlob(ctx, "missing", "a.txt", bytes.NewReader(nil)); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Expected %v, got %v", ErrNotExist, err)
	}
	if _, err := s.UploadBlob(ctx, "images", "../a.txt", bytes.NewReader(nil)); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("Expected %v, got %v", ErrInvalidName, err)
	}
	blob, err := s.UploadBlob(ctx, "images", "cats/cat.txt", bytes.NewReader([]byte("test")))
	if err != nil {
		t.Fatal("Error:", err)
	}
	if blob.Size != 4 || blob.MD5 != "098f6bcd4621d373cade4e832627b4f6" {
		t.Fatalf("Unexpected blob: %+v", blob)
	}
	if _, err := s.UploadBlob(ctx, "images", "dog.txt", bytes.NewReader([]byte("woof"))); err != nil {
		t.Fatal("Error:", err)
	}
	blob, err = s.GetBlob(ctx, "images", "cats/cat.txt")
	if err != nil {
		t.Fatal("Error:", err)
	}
	if blob.Size != 4 || blob.MD5 != "098f6bcd4621d373cade4e832627b4f6" {
		t.Fatalf("Unexpected blob: %+v", blob)
	}
	if _, err := s.GetBlob(ctx, "images", "cats/dog.txt"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Expected %v, got %v", ErrNotExist, err)
	}
	reader, err := s.DownloadBlob(ctx, "images", "cats/cat.txt")
	if err != nil {
		t.Fatal("Error:", err)
	}
	data, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		t.Fatal("Error:", err)
	}
	if string(data) != "test" {
		t.Fatalf("Expected %q, got %q", "test", data)
	}
	blobs, err := s.ListBlobs(ctx, "images", "")
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(blobs) != 2 || blobs[0].Name != "cats/cat.txt" || blobs[1].Name != "dog.txt" {
		t.Fatalf("Unexpected blobs: %+v", blobs)
	}
	blobs, err = s.ListBlobs(ctx, "images", "cats/")
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(blobs) != 1 || blobs[0].Name != "cats/cat.txt" {
		t.Fatalf("Unexpected blobs: %+v", blobs)
	}
	if err := s.DeleteBlob(ctx, "images", "dog.txt"); err != nil {
		t.Fatal("Error:", err)
	}
	if err := s.DeleteBlob(ctx, "images", "dog.txt"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Expected %v, got %v", ErrNotExist, err)
	}
	if err := s.DeleteContainer(ctx, "images"); err != nil {
		t.Fatal("Error:", err)
	}
	if _, err := s.GetContainer(ctx, "images"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Expected %v, got %v", ErrNotExist, err)
	}
	if err := s.DeleteContainer(ctx, "images"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Expected %v, got %v", ErrNotExist, err)
	}
	containers, err = s.ListContainers(ctx, "")
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(containers) != 1 || containers[0].Name != "documents" {
		t.Fatalf("Unexpected containers: %+v", containers)
	}
}

func TestLocalStorage(t *testing.T) {
	s, err := NewStorage(config.Storage{
		Options: config.LocalStorageOptions{FilesDir: t.TempDir()},
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	testStorage(t, s)
}

func TestS3Storage(t *testing.T) {
	fakeS3Mem := s3mem.New()
	if err := fakeS3Mem.CreateBucket("test-bucket"); err != nil {
		t.Fatal("Error:", err)
	}
	fakeS3 := gofakes3.New(fakeS3Mem)
	fakeS3Server := httptest.NewServer(fakeS3.Server())
	defer fakeS3Server.Close()
	s, err := NewStorage(config.Storage{
		Options: config.S3StorageOptions{
			Endpoint:        fakeS3Server.URL,
			Bucket:          "test-bucket",
			PathPrefix:      "containers/",
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			UsePathStyle:    true,
		},
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	testStorage(t, s)
}

func TestNewS3StorageWithoutBucket(t *testing.T) {
	if _, err := NewS3Storage(config.S3StorageOptions{}); err == nil {
		t.Fatal("Expected error")
	}
}

func TestSetContainerPoliciesLimit(t *testing.T) {
	s := NewLocalStorage(t.TempDir())
	ctx := context.Background()
	if _, err := s.CreateContainer(ctx, "limits", PublicAccessOff); err != nil {
		t.Fatal("Error:", err)
	}
	policies := map[string]sas.AccessPolicy{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		policies[id] = sas.AccessPolicy{}
	}
	if _, err := s.SetContainerPolicies(ctx, "limits", policies); err == nil {
		t.Fatal("Expected error")
	}
	if _, err := s.SetContainerPolicies(ctx, "limits", map[string]sas.AccessPolicy{
		"a": {ID: "b"},
	}); err == nil {
		t.Fatal("Expected error")
	}
}

func TestValidateContainerName(t *testing.T) {
	valid := []string{"abc", "my-container", "a1b2c3", "123"}
	for _, name := range valid {
		if err := ValidateContainerName(name); err != nil {
			t.Fatalf("Name %q: unexpected error: %v", name, err)
		}
	}
	invalid := []string{"", "ab", "-abc", "abc-", "a--b", "ABC", "a_b", "a.b", string(make([]byte, 64))}
	for _, name := range invalid {
		if err := ValidateContainerName(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Name %q: expected %v, got %v", name, ErrInvalidName, err)
		}
	}
}

func TestValidateBlobName(t *testing.T) {
	valid := []string{"a", "a/b", "dir/file.txt", "файл.txt", "a.upload-b", ".upload-dir/a"}
	for _, name := range valid {
		if err := ValidateBlobName(name); err != nil {
			t.Fatalf("Name %q: unexpected error: %v", name, err)
		}
	}
	invalid := []string{"", "/a", "a/", "a//b", "./a", "a/../b", `a\b`, metadataName, ".upload-1", "dir/.upload-2"}
	for _, name := range invalid {
		if err := ValidateBlobName(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Name %q: expected %v, got %v", name, ErrInvalidName, err)
		}
	}
}

func TestParsePublicAccess(t *testing.T) {
	tests := []struct {
		Value  string
		Expect PublicAccess
	}{
		{"", PublicAccessOff},
		{"off", PublicAccessOff},
		{"Blob", PublicAccessBlob},
		{"CONTAINER", PublicAccessContainer},
	}
	for _, test := range tests {
		access, err := ParsePublicAccess(test.Value)
		if err != nil {
			t.Fatalf("Value %q: unexpected error: %v", test.Value, err)
		}
		if access != test.Expect {
			t.Fatalf("Value %q: expected %q, got %q", test.Value, test.Expect, access)
		}
	}
	if _, err := ParsePublicAccess("public"); err == nil {
		t.Fatal("Expected error")
	}
}
