package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/labstack/gommon/log"
)

// Version contains cloudctl version.
var Version = "development"

// Config stores configuration for cloudctl commands and emulator.
type Config struct {
	// LogLevel contains minimal level of written log lines.
	LogLevel LogLevel `json:"log_level,omitempty"`
	// Management contains remote management API config.
	Management *Management `json:"management,omitempty"`
	// Account contains storage account used for signing tokens.
	Account *Account `json:"account,omitempty"`
	// Storage contains container and blob storage config.
	Storage *Storage `json:"storage,omitempty"`
	// Emulator contains local management API emulator config.
	Emulator *Emulator `json:"emulator,omitempty"`
}

// Management contains remote management API config.
type Management struct {
	Endpoint string   `json:"endpoint"`
	Token    Secret   `json:"token,omitempty"`
	Timeout  Duration `json:"timeout,omitempty"`
}

// Account contains storage account credentials.
type Account struct {
	Name string `json:"name"`
	// Key contains base64 encoded account key.
	Key Secret `json:"key"`
	// BlobEndpoint overrides default blob endpoint of account.
	BlobEndpoint string `json:"blob_endpoint,omitempty"`
}

// Endpoint returns blob service endpoint of account.
func (a Account) Endpoint() string {
	if a.BlobEndpoint != "" {
		return strings.TrimRight(a.BlobEndpoint, "/")
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net", a.Name)
}

// Emulator contains local management API emulator config.
type Emulator struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	DB    DB     `json:"db"`
	Token Secret `json:"token,omitempty"`
}

// Address returns string representation of emulator address.
func (e Emulator) Address() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// LogLevel represents level of logging.
type LogLevel log.Lvl

var logLevelNames = map[LogLevel]string{
	LogLevel(log.DEBUG): "debug",
	LogLevel(log.INFO):  "info",
	LogLevel(log.WARN):  "warn",
	LogLevel(log.ERROR): "error",
	LogLevel(log.OFF):   "off",
}

// Level returns logger level, INFO is used when level is not set.
func (l LogLevel) Level() log.Lvl {
	if l == 0 {
		return log.INFO
	}
	return log.Lvl(l)
}

func (l LogLevel) MarshalText() ([]byte, error) {
	if name, ok := logLevelNames[l]; ok {
		return []byte(name), nil
	}
	return nil, fmt.Errorf("unsupported log level %d", l)
}

func (l *LogLevel) UnmarshalText(text []byte) error {
	for level, name := range logLevelNames {
		if strings.EqualFold(name, string(text)) {
			*l = level
			return nil
		}
	}
	return fmt.Errorf("unsupported log level %q", text)
}

// Duration represents time.Duration encoded as string like "30s".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// LoadFromFile loads configuration from json file.
//
// File is rendered as text/template before decoding, so values can be
// taken from environment or from other files:
//
//	{"account": {"key": {{ env "ACCOUNT_KEY" | json }}}}
func LoadFromFile(file string) (Config, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return Config{}, err
	}
	tmpl, err := template.New("config").Funcs(templateFuncs).Parse(string(bytes))
	if err != nil {
		return Config{}, err
	}
	var buffer strings.Builder
	if err := tmpl.Execute(&buffer, nil); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal([]byte(buffer.String()), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var templateFuncs = template.FuncMap{
	"json": func(value any) (string, error) {
		data, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		return string(data), nil
	},
	"file": func(name string) (string, error) {
		bytes, err := os.ReadFile(name)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(bytes), "\r\n"), nil
	},
	"env": func(name string) (string, error) {
		value, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %q does not exist", name)
		}
		return value, nil
	},
}
