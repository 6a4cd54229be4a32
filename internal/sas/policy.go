package sas

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/udovin/cloudctl/internal/perms"
)

// AccessPolicy describes permissions and time window of access grant.
//
// Policy with ID can be stored on container and referenced by tokens.
type AccessPolicy struct {
	ID          string
	Start       time.Time
	Expiry      time.Time
	Permissions perms.PermissionSet
}

// SetPermissions replaces policy permissions with parsed spec.
//
// Empty spec keeps current permissions. On error policy is not changed.
func (p *AccessPolicy) SetPermissions(spec string, letters perms.Letters) error {
	if spec == "" {
		return nil
	}
	set, err := perms.Parse(spec, letters)
	if err != nil {
		return err
	}
	p.Permissions = set
	return nil
}

// Validate checks that policy is able to grant access.
func (p AccessPolicy) Validate() error {
	if !p.Start.IsZero() && !p.Expiry.IsZero() && !p.Expiry.After(p.Start) {
		return fmt.Errorf(
			"%w: expiry time %s should be after start time %s",
			ErrInvalidPolicy, formatTime(p.Expiry), formatTime(p.Start),
		)
	}
	if p.ID != "" {
		return nil
	}
	if p.Expiry.IsZero() {
		return fmt.Errorf("%w: expiry time is required", ErrInvalidPolicy)
	}
	if p.Permissions.Len() == 0 {
		return fmt.Errorf("%w: permissions are required", ErrInvalidPolicy)
	}
	return nil
}

// merge fills empty fields of p with values of stored policy.
func (p AccessPolicy) merge(stored AccessPolicy) AccessPolicy {
	if p.Start.IsZero() {
		p.Start = stored.Start
	}
	if p.Expiry.IsZero() {
		p.Expiry = stored.Expiry
	}
	if p.Permissions.Len() == 0 {
		p.Permissions = stored.Permissions.Clone()
	}
	return p
}

type accessPolicyJSON struct {
	ID          string `json:"id,omitempty"`
	Start       string `json:"start,omitempty"`
	Expiry      string `json:"expiry,omitempty"`
	Permissions string `json:"permissions,omitempty"`
}

// MarshalJSON encodes permissions using container letters.
func (p AccessPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(accessPolicyJSON{
		ID:          p.ID,
		Start:       formatTime(p.Start),
		Expiry:      formatTime(p.Expiry),
		Permissions: p.Permissions.Format(perms.ContainerLetters),
	})
}

func (p *AccessPolicy) UnmarshalJSON(bytes []byte) error {
	var v accessPolicyJSON
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}
	start, err := parseTime(v.Start)
	if err != nil {
		return err
	}
	expiry, err := parseTime(v.Expiry)
	if err != nil {
		return err
	}
	set, err := perms.Parse(v.Permissions, perms.ContainerLetters)
	if err != nil {
		return err
	}
	*p = AccessPolicy{
		ID:          v.ID,
		Start:       start,
		Expiry:      expiry,
		Permissions: set,
	}
	return nil
}

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
