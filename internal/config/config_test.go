package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
)

func TestLoadFromFile(t *testing.T) {
	file, err := os.CreateTemp(t.TempDir(), "cloudctl-test-")
	if err != nil {
		t.Fatal("Error: ", err)
	}
	expectedConfig := Config{
		Management: &Management{
			Endpoint: "http://localhost:4242",
			Token:    "qwerty123",
			Timeout:  Duration(10 * time.Second),
		},
		Emulator: &Emulator{
			Host: "localhost",
			Port: 4242,
			DB: DB{
				Options: SQLiteOptions{Path: ":memory:"},
			},
		},
		LogLevel: LogLevel(log.INFO),
	}
	expectedConfigData, err := json.Marshal(expectedConfig)
	if err != nil {
		t.Fatal("Error: ", err)
	}
	_, err = file.Write(expectedConfigData)
	_ = file.Close()
	if err != nil {
		t.Fatal("Error: ", err)
	}
	_, err = LoadFromFile(filepath.Join(t.TempDir(), "cloudctl-test-deleted"))
	if err == nil {
		t.Fatal("Expected error for config from deleted file")
	}
	config, err := LoadFromFile(file.Name())
	if err != nil {
		t.Fatal("Error: ", err)
	}
	configData, err := json.Marshal(config)
	if err != nil {
		t.Fatal("Error: ", err)
	}
	testExpect(t, string(configData), string(expectedConfigData))
	testExpect(t, time.Duration(config.Management.Timeout), 10*time.Second)
}

const templateConfig = `
{
	"log_level": "debug",
	"account": {
		"name": {{ "devaccount" | json }},
		"key": {{ file "SECRET_FILE" | json }}
	},
	"storage": {
		"driver": "s3",
		"options": {
			"bucket": "test-bucket",
			"secret_access_key": "env:CLOUDCTL_TEST_S3_SECRET"
		}
	},
	"emulator": {
		"host": "localhost",
		"port": 4242,
		"db": {
			"driver": "sqlite",
			"options": {"path": ":memory:"}
		}
	}
}
`

func TestLoadFromTemplateFile(t *testing.T) {
	secretFile, err := os.CreateTemp(t.TempDir(), "cloudctl-test-secret-")
	if err != nil {
		t.Fatal("Error: ", err)
	}
	if _, err := secretFile.Write([]byte("secret\n")); err != nil {
		t.Fatal("Error: ", err)
	}
	_ = secretFile.Close()
	file, err := os.CreateTemp(t.TempDir(), "cloudctl-test-")
	if err != nil {
		t.Fatal("Error: ", err)
	}
	if _, err = file.Write([]byte(strings.ReplaceAll(
		templateConfig, "SECRET_FILE", secretFile.Name(),
	))); err != nil {
		t.Fatal("Error: ", err)
	}
	_ = file.Close()
	t.Setenv("CLOUDCTL_TEST_S3_SECRET", "s3-secret")
	cfg, err := LoadFromFile(file.Name())
	if err != nil {
		t.Fatal("Error: ", err)
	}
	testExpect(t, cfg.LogLevel, LogLevel(log.DEBUG))
	testExpect(t, cfg.Account.Name, "devaccount")
	key, err := cfg.Account.Key.Secret()
	if err != nil {
		t.Fatal("Error: ", err)
	}
	testExpect(t, key, "secret")
	opts, ok := cfg.Storage.Options.(S3StorageOptions)
	if !ok {
		t.Fatalf("Invalid options type: %T", cfg.Storage.Options)
	}
	testExpect(t, opts.Bucket, "test-bucket")
	s3Secret, err := opts.SecretAccessKey.Secret()
	if err != nil {
		t.Fatal("Error: ", err)
	}
	testExpect(t, s3Secret, "s3-secret")
	if _, ok := cfg.Emulator.DB.Options.(SQLiteOptions); !ok {
		t.Fatalf("Invalid options type: %T", cfg.Emulator.DB.Options)
	}
	testExpect(t, cfg.Emulator.Address(), "localhost:4242")
	testExpect(t, cfg.Account.Endpoint(), "https://devaccount.blob.core.windows.net")
}

func TestLoadFromInvalidFile(t *testing.T) {
	tests := []string{
		"invalid data",
		`{"server": {{ invalid }} }`,
		`{"server": { {{ .unknown }} } }`,
		`{"storage": {"driver": "ftp", "options": {}}}`,
		`{"storage": {"driver": "local", "options": {}}}`,
		`{"storage": {"driver": "local", "options": {"files_dir": "a", "files_path": "b"}}}`,
		`{"storage": {"driver": "s3", "options": {"region": "us-east-1"}}}`,
		`{"storage": {"driver": "s3", "options": {"bucket": "a", "endpoint": "ftp://localhost"}}}`,
		`{"emulator": {"db": {"driver": "mysql"}}}`,
		`{"log_level": "verbose"}`,
		`{"management": {"timeout": "soon"}}`,
		`{"account": {"key": {{ env "CLOUDCTL_TEST_UNKNOWN_ENV" | json }}}}`,
	}
	for _, data := range tests {
		file, err := os.CreateTemp(t.TempDir(), "cloudctl-test-")
		if err != nil {
			t.Fatal("Error: ", err)
		}
		if _, err := file.Write([]byte(data)); err != nil {
			t.Fatal("Error: ", err)
		}
		_ = file.Close()
		if _, err := LoadFromFile(file.Name()); err == nil {
			t.Fatalf("Expected error for invalid config file: %s", data)
		}
	}
}

func TestSecret(t *testing.T) {
	t.Setenv("CLOUDCTL_TEST_SECRET", "from-env")
	value, err := Secret("env:CLOUDCTL_TEST_SECRET").Secret()
	if err != nil {
		t.Fatal("Error: ", err)
	}
	testExpect(t, value, "from-env")
	if _, err := Secret("env:CLOUDCTL_TEST_UNKNOWN_ENV").Secret(); err == nil {
		t.Fatal("Expected error")
	}
	if _, err := Secret("file:" + filepath.Join(t.TempDir(), "missing")).Secret(); err == nil {
		t.Fatal("Expected error")
	}
	testExpect(t, Secret("plain").String(), "******")
	testExpect(t, fmt.Sprint(Secret("")), "")
}

func TestStorageOptionsValidate(t *testing.T) {
	valid := []StorageOptions{
		LocalStorageOptions{FilesDir: "files"},
		S3StorageOptions{Bucket: "test-bucket"},
		S3StorageOptions{
			Bucket:          "test-bucket",
			AccessKeyID:     "test",
			SecretAccessKey: "env:CLOUDCTL_TEST_S3_SECRET",
			Endpoint:        "http://localhost:9000",
		},
	}
	for _, options := range valid {
		if err := options.Validate(); err != nil {
			t.Fatalf("Options %#v: unexpected error: %v", options, err)
		}
		data, err := json.Marshal(Storage{Options: options})
		if err != nil {
			t.Fatal("Error: ", err)
		}
		var storage Storage
		if err := json.Unmarshal(data, &storage); err != nil {
			t.Fatal("Error: ", err)
		}
		if storage.Options != options {
			t.Fatalf("Expected %#v, got %#v", options, storage.Options)
		}
	}
	invalid := []StorageOptions{
		LocalStorageOptions{},
		S3StorageOptions{},
		S3StorageOptions{Bucket: "test-bucket", AccessKeyID: "test"},
		S3StorageOptions{Bucket: "test-bucket", Endpoint: "localhost:9000"},
	}
	for _, options := range invalid {
		if err := options.Validate(); err == nil {
			t.Fatalf("Options %#v: expected error", options)
		}
	}
}

func TestDBCreate(t *testing.T) {
	db, err := DB{Options: SQLiteOptions{Path: ":memory:"}}.Create()
	if err != nil {
		t.Fatal("Error: ", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.Ping(); err != nil {
		t.Fatal("Error: ", err)
	}
	if db.Builder == nil || db.RO == nil {
		t.Fatal("Expected query builder and read-only connection")
	}
	if _, err := (DB{}).Create(); err == nil {
		t.Fatal("Expected error")
	}
	if _, err := json.Marshal(DB{}); err == nil {
		t.Fatal("Expected error")
	}
}

func TestLogLevel(t *testing.T) {
	testExpect(t, LogLevel(0).Level(), log.INFO)
	testExpect(t, LogLevel(log.WARN).Level(), log.WARN)
	if _, err := LogLevel(42).MarshalText(); err == nil {
		t.Fatal("Expected error")
	}
}

func testExpect[T comparable](tb testing.TB, output, answer T) {
	tb.Helper()
	if output != answer {
		tb.Fatalf(
			"Expected %q, got %q",
			fmt.Sprint(answer), fmt.Sprint(output),
		)
	}
}
