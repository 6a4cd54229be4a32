package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/udovin/cloudctl/internal/config"
	"github.com/udovin/cloudctl/internal/pkg/hash"
	"github.com/udovin/cloudctl/internal/sas"
)

const defaultS3Region = "us-east-1"

// S3Storage stores containers as key prefixes of single bucket.
type S3Storage struct {
	client     *s3.Client
	bucket     string
	pathPrefix string
}

// NewS3Storage creates storage for S3 compatible service.
func NewS3Storage(opts config.S3StorageOptions) (*S3Storage, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket is not specified")
	}
	secretAccessKey, err := opts.SecretAccessKey.Secret()
	if err != nil {
		return nil, err
	}
	region := opts.Region
	if region == "" {
		region = defaultS3Region
	}
	options := s3.Options{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, secretAccessKey, "",
		),
		UsePathStyle: opts.UsePathStyle,
	}
	if opts.Endpoint != "" {
		options.EndpointResolver = s3.EndpointResolverFromURL(opts.Endpoint)
	}
	return &S3Storage{
		client:     s3.New(options),
		bucket:     opts.Bucket,
		pathPrefix: opts.PathPrefix,
	}, nil
}

func (s *S3Storage) CreateContainer(
	ctx context.Context, name string, access PublicAccess,
) (Container, error) {
	if err := ValidateContainerName(name); err != nil {
		return Container{}, err
	}
	if _, err := s.readMetadata(ctx, name); err == nil {
		return Container{}, fmt.Errorf("container %q: %w", name, ErrExist)
	} else if !errors.Is(err, ErrNotExist) {
		return Container{}, err
	}
	container := Container{
		Name:         name,
		PublicAccess: access,
		LastModified: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.writeMetadata(ctx, container); err != nil {
		return Container{}, err
	}
	return container, nil
}

func (s *S3Storage) GetContainer(ctx context.Context, name string) (Container, error) {
	if err := ValidateContainerName(name); err != nil {
		return Container{}, err
	}
	return s.readMetadata(ctx, name)
}

func (s *S3Storage) ListContainers(ctx context.Context, prefix string) ([]Container, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.pathPrefix + prefix),
		Delimiter: aws.String("/"),
	})
	var containers []Container
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, common := range page.CommonPrefixes {
			name := strings.TrimSuffix(
				strings.TrimPrefix(aws.ToString(common.Prefix), s.pathPrefix), "/",
			)
			if ValidateContainerName(name) != nil {
				continue
			}
			container, err := s.readMetadata(ctx, name)
			if err != nil {
				if errors.Is(err, ErrNotExist) {
					continue
				}
				return nil, err
			}
			containers = append(containers, container)
		}
	}
	sort.Slice(containers, func(i, j int) bool {
		return containers[i].Name < containers[j].Name
	})
	return containers, nil
}

func (s *S3Storage) SetContainerACL(
	ctx context.Context, name string, access PublicAccess,
) (Container, error) {
	return s.updateContainer(ctx, name, func(c *Container) {
		c.PublicAccess = access
	})
}

func (s *S3Storage) SetContainerPolicies(
	ctx context.Context, name string, policies map[string]sas.AccessPolicy,
) (Container, error) {
	if err := validatePolicies(policies); err != nil {
		return Container{}, err
	}
	return s.updateContainer(ctx, name, func(c *Container) {
		c.Policies = normalizePolicies(policies)
	})
}

func (s *S3Storage) DeleteContainer(ctx context.Context, name string) error {
	if _, err := s.GetContainer(ctx, name); err != nil {
		return err
	}
	blobs, err := s.ListBlobs(ctx, name, "")
	if err != nil {
		return err
	}
	for _, blob := range blobs {
		if err := s.deleteObject(ctx, s.blobKey(name, blob.Name)); err != nil {
			return err
		}
	}
	return s.deleteObject(ctx, s.metadataKey(name))
}

func (s *S3Storage) UploadBlob(
	ctx context.Context, container, name string, r io.Reader,
) (Blob, error) {
	if err := s.checkBlob(ctx, container, name); err != nil {
		return Blob{}, err
	}
	// Request signing requires seekable body.
	var buffer bytes.Buffer
	reader, digest := hash.TeeMD5(r)
	if _, err := io.Copy(&buffer, reader); err != nil {
		return Blob{}, err
	}
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.blobKey(container, name)),
		Body:          bytes.NewReader(buffer.Bytes()),
		ContentLength: digest().Size,
		ContentMD5:    aws.String(digest().Base64()),
	}); err != nil {
		return Blob{}, err
	}
	return Blob{
		Container:    container,
		Name:         name,
		Size:         digest().Size,
		MD5:          digest().Hex(),
		LastModified: time.Now().UTC().Truncate(time.Second),
	}, nil
}

func (s *S3Storage) DownloadBlob(
	ctx context.Context, container, name string,
) (io.ReadCloser, error) {
	if err := s.checkBlob(ctx, container, name); err != nil {
		return nil, err
	}
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.blobKey(container, name)),
	})
	if err != nil {
		return nil, wrapNotExist(err, "blob", name)
	}
	return resp.Body, nil
}

func (s *S3Storage) GetBlob(ctx context.Context, container, name string) (Blob, error) {
	if err := s.checkBlob(ctx, container, name); err != nil {
		return Blob{}, err
	}
	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.blobKey(container, name)),
	})
	if err != nil {
		return Blob{}, wrapNotExist(err, "blob", name)
	}
	return Blob{
		Container:    container,
		Name:         name,
		Size:         resp.ContentLength,
		MD5:          strings.Trim(aws.ToString(resp.ETag), `"`),
		LastModified: aws.ToTime(resp.LastModified).UTC(),
	}, nil
}

func (s *S3Storage) ListBlobs(
	ctx context.Context, container, prefix string,
) ([]Blob, error) {
	if _, err := s.GetContainer(ctx, container); err != nil {
		return nil, err
	}
	containerPrefix := s.blobKey(container, "")
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(containerPrefix + prefix),
	})
	var blobs []Blob
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, object := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(object.Key), containerPrefix)
			if name == metadataName {
				continue
			}
			blobs = append(blobs, Blob{
				Container:    container,
				Name:         name,
				Size:         object.Size,
				MD5:          strings.Trim(aws.ToString(object.ETag), `"`),
				LastModified: aws.ToTime(object.LastModified).UTC(),
			})
		}
	}
	sort.Slice(blobs, func(i, j int) bool {
		return blobs[i].Name < blobs[j].Name
	})
	return blobs, nil
}

func (s *S3Storage) DeleteBlob(ctx context.Context, container, name string) error {
	if _, err := s.GetBlob(ctx, container, name); err != nil {
		return err
	}
	return s.deleteObject(ctx, s.blobKey(container, name))
}

func (s *S3Storage) checkBlob(ctx context.Context, container, name string) error {
	if _, err := s.GetContainer(ctx, container); err != nil {
		return err
	}
	return ValidateBlobName(name)
}

func (s *S3Storage) updateContainer(
	ctx context.Context, name string, fn func(*Container),
) (Container, error) {
	container, err := s.GetContainer(ctx, name)
	if err != nil {
		return Container{}, err
	}
	fn(&container)
	container.LastModified = time.Now().UTC().Truncate(time.Second)
	if err := s.writeMetadata(ctx, container); err != nil {
		return Container{}, err
	}
	return container, nil
}

func (s *S3Storage) readMetadata(ctx context.Context, name string) (Container, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.metadataKey(name)),
	})
	if err != nil {
		return Container{}, wrapNotExist(err, "container", name)
	}
	defer func() { _ = resp.Body.Close() }()
	var container Container
	if err := json.NewDecoder(resp.Body).Decode(&container); err != nil {
		return Container{}, fmt.Errorf("cannot read container %q metadata: %w", name, err)
	}
	container.Name = name
	return container, nil
}

func (s *S3Storage) writeMetadata(ctx context.Context, container Container) error {
	data, err := json.Marshal(container)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.metadataKey(container.Name)),
		Body:          bytes.NewReader(data),
		ContentLength: int64(len(data)),
		ContentType:   aws.String("application/json"),
	})
	return err
}

func (s *S3Storage) deleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3Storage) metadataKey(container string) string {
	return s.blobKey(container, metadataName)
}

func (s *S3Storage) blobKey(container, name string) string {
	return s.pathPrefix + container + "/" + name
}

func wrapNotExist(err error, kind, name string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%s %q: %w", kind, name, ErrNotExist)
		}
	}
	// HEAD responses have no body with error code.
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s %q: %w", kind, name, ErrNotExist)
	}
	return err
}

var _ Storage = (*S3Storage)(nil)
