// Package project locates cloud service projects and manages their
// service settings.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefinitionFile marks root directory of cloud service project.
	DefinitionFile = "ServiceDefinition.json"
	// SettingsFile contains service settings relative to project root.
	SettingsFile = "ServiceSettings.json"
)

// ErrNotProject means that no project root was found.
var ErrNotProject = errors.New("not a cloud service project")

// Slot represents deployment slot of cloud service.
type Slot string

const (
	ProductionSlot Slot = "production"
	StagingSlot    Slot = "staging"
)

// ParseSlot parses slot name ignoring case.
func ParseSlot(s string) (Slot, error) {
	switch slot := Slot(strings.ToLower(s)); slot {
	case ProductionSlot, StagingSlot:
		return slot, nil
	default:
		return "", fmt.Errorf(
			"invalid slot %q (expected %q or %q)", s, ProductionSlot, StagingSlot,
		)
	}
}

// FindServiceRoot walks up from dir until directory with DefinitionFile
// is found.
func FindServiceRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(filepath.Join(dir, DefinitionFile))
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s not found", ErrNotProject, DefinitionFile)
		}
		dir = parent
	}
}

// SettingsPath returns path to settings file of project with root.
func SettingsPath(root string) string {
	return filepath.Join(root, SettingsFile)
}

// ServiceSettings contains settings of cloud service project.
type ServiceSettings struct {
	Subscription       string `json:"subscription,omitempty"`
	Location           string `json:"location,omitempty"`
	StorageAccountName string `json:"storage_account_name,omitempty"`
	Slot               Slot   `json:"slot,omitempty"`
}

// SettingsForm contains settings update. Empty fields are not changed.
type SettingsForm struct {
	Subscription       string
	Location           string
	StorageAccountName string
	Slot               string
}

// Empty returns true when form changes nothing.
func (f SettingsForm) Empty() bool {
	return f == SettingsForm{}
}

// Update applies non-empty fields of form to settings.
//
// On error settings are not changed.
func (s *ServiceSettings) Update(form SettingsForm) error {
	result := *s
	if form.Subscription != "" {
		result.Subscription = form.Subscription
	}
	if form.Location != "" {
		result.Location = form.Location
	}
	if form.StorageAccountName != "" {
		if err := validateAccountName(form.StorageAccountName); err != nil {
			return err
		}
		result.StorageAccountName = form.StorageAccountName
	}
	if form.Slot != "" {
		slot, err := ParseSlot(form.Slot)
		if err != nil {
			return err
		}
		result.Slot = slot
	}
	*s = result
	return nil
}

func validateAccountName(name string) error {
	if len(name) < 3 || len(name) > 24 {
		return fmt.Errorf("storage account name %q should contain from 3 to 24 characters", name)
	}
	for _, c := range name {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return fmt.Errorf("storage account name %q should contain only lowercase letters and digits", name)
		}
	}
	return nil
}

// LoadSettings reads settings from file.
//
// Missing file results in empty settings.
func LoadSettings(file string) (ServiceSettings, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ServiceSettings{}, nil
		}
		return ServiceSettings{}, err
	}
	var settings ServiceSettings
	if err := json.Unmarshal(bytes, &settings); err != nil {
		return ServiceSettings{}, fmt.Errorf("cannot parse %s: %w", file, err)
	}
	return settings, nil
}

// SaveSettings writes settings to file.
func SaveSettings(file string, settings ServiceSettings) error {
	bytes, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, append(bytes, '\n'), 0644)
}
