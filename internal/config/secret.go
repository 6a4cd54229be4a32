package config

import (
	"fmt"
	"os"
	"strings"
)

// Secret represents secret value like password or access key.
//
// Value can be specified in one of the following forms:
//
//	"qwerty123"          - plain text value;
//	"env:ACCOUNT_KEY"    - value of environment variable;
//	"file:account.key"   - content of file without trailing newlines.
type Secret string

const (
	envSecretPrefix  = "env:"
	fileSecretPrefix = "file:"
)

// Secret returns resolved secret value.
func (s Secret) Secret() (string, error) {
	value := string(s)
	switch {
	case strings.HasPrefix(value, envSecretPrefix):
		name := strings.TrimPrefix(value, envSecretPrefix)
		env, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %q does not exist", name)
		}
		return env, nil
	case strings.HasPrefix(value, fileSecretPrefix):
		bytes, err := os.ReadFile(strings.TrimPrefix(value, fileSecretPrefix))
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(bytes), "\r\n"), nil
	default:
		return value, nil
	}
}

// String returns masked representation of secret.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "******"
}
