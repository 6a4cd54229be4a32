package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
)

type StorageDriver string

const (
	LocalStorageDriver StorageDriver = "local"
	S3StorageDriver    StorageDriver = "s3"
)

// StorageOptions contains options of containers and blobs driver.
type StorageOptions interface {
	Driver() StorageDriver
	// Validate checks that storage can be opened with options.
	Validate() error
}

// LocalStorageOptions keeps every container as directory in FilesDir.
type LocalStorageOptions struct {
	FilesDir string `json:"files_dir"`
}

func (o LocalStorageOptions) Driver() StorageDriver {
	return LocalStorageDriver
}

func (o LocalStorageOptions) Validate() error {
	if o.FilesDir == "" {
		return fmt.Errorf("files_dir is required")
	}
	return nil
}

// S3StorageOptions keeps every container as key prefix in Bucket.
//
// Container metadata with stored access policies is kept next to blobs.
type S3StorageOptions struct {
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey Secret `json:"secret_access_key"`
	Endpoint        string `json:"endpoint"`
	Bucket          string `json:"bucket"`
	PathPrefix      string `json:"path_prefix,omitempty"`
	UsePathStyle    bool   `json:"use_path_style,omitempty"`
}

func (o S3StorageOptions) Driver() StorageDriver {
	return S3StorageDriver
}

func (o S3StorageOptions) Validate() error {
	if o.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if o.AccessKeyID != "" && o.SecretAccessKey == "" {
		return fmt.Errorf("secret_access_key is required for access_key_id %q", o.AccessKeyID)
	}
	if o.Endpoint != "" {
		endpoint, err := url.Parse(o.Endpoint)
		if err != nil {
			return fmt.Errorf("invalid endpoint: %w", err)
		}
		if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
			return fmt.Errorf("endpoint %q should use http or https scheme", o.Endpoint)
		}
	}
	return nil
}

// Storage contains config of containers and blobs storage.
//
// In file it is written as {"driver": "...", "options": {...}}.
type Storage struct {
	Options StorageOptions `json:"options"`
}

type storageJSON struct {
	Driver  StorageDriver   `json:"driver"`
	Options json.RawMessage `json:"options"`
}

func (c Storage) MarshalJSON() ([]byte, error) {
	if c.Options == nil {
		return nil, fmt.Errorf("storage options are not specified")
	}
	options, err := json.Marshal(c.Options)
	if err != nil {
		return nil, err
	}
	return json.Marshal(storageJSON{
		Driver:  c.Options.Driver(),
		Options: options,
	})
}

func (c *Storage) UnmarshalJSON(data []byte) error {
	var cfg storageJSON
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}
	decode, ok := storageDecoders[cfg.Driver]
	if !ok {
		return fmt.Errorf("storage driver %q is not supported", cfg.Driver)
	}
	options, err := decode(cfg.Options)
	if err != nil {
		return fmt.Errorf("storage driver %q: %w", cfg.Driver, err)
	}
	c.Options = options
	return nil
}

var storageDecoders = map[StorageDriver]func(json.RawMessage) (StorageOptions, error){
	LocalStorageDriver: decodeStorageOptions[LocalStorageOptions],
	S3StorageDriver:    decodeStorageOptions[S3StorageOptions],
}

// decodeStorageOptions decodes and validates options, unknown fields are
// rejected.
func decodeStorageOptions[T StorageOptions](data json.RawMessage) (StorageOptions, error) {
	var options T
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&options); err != nil {
		return nil, err
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}
