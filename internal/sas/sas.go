// Package sas builds and verifies shared access signature tokens.
package sas

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/udovin/cloudctl/internal/perms"
)

// Version contains signed version of produced tokens.
const Version = "2013-08-15"

var (
	ErrInvalidPolicy    = errors.New("invalid access policy")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token is expired")
	ErrTokenNotStarted  = errors.New("token is not yet valid")
)

type ResourceType string

const (
	ContainerResource ResourceType = "c"
	BlobResource      ResourceType = "b"
)

// Resource identifies container or blob of storage account.
type Resource struct {
	Account   string
	Container string
	// Blob is empty for container resource.
	Blob string
}

func (r Resource) Type() ResourceType {
	if r.Blob == "" {
		return ContainerResource
	}
	return BlobResource
}

// Letters returns permission letters accepted for resource.
func (r Resource) Letters() perms.Letters {
	if r.Type() == ContainerResource {
		return perms.ContainerLetters
	}
	return perms.BlobLetters
}

func (r Resource) canonicalName() string {
	name := "/" + r.Account + "/" + r.Container
	if r.Blob != "" {
		name += "/" + r.Blob
	}
	return name
}

type Protocol string

const (
	HTTPSOnly    Protocol = "https"
	HTTPSAndHTTP Protocol = "https,http"
)

// Signer signs tokens with storage account key.
type Signer struct {
	Account string
	Key     []byte
}

// NewSigner creates signer from base64 encoded account key.
func NewSigner(account, key string) (*Signer, error) {
	if account == "" {
		return nil, fmt.Errorf("account name is required")
	}
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("invalid account key: %w", err)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("account key is empty")
	}
	return &Signer{Account: account, Key: decoded}, nil
}

// Sign returns token that grants access described by policy.
//
// Token has form of URL query string without leading '?'.
func (s Signer) Sign(
	resource Resource, policy AccessPolicy, protocol Protocol,
) (string, error) {
	resource.Account = s.Account
	if resource.Container == "" {
		return "", fmt.Errorf("container name is required")
	}
	if err := policy.Validate(); err != nil {
		return "", err
	}
	if protocol == "" {
		protocol = HTTPSOnly
	}
	if protocol != HTTPSOnly && protocol != HTTPSAndHTTP {
		return "", fmt.Errorf("unsupported protocol %q", protocol)
	}
	letters := resource.Letters()
	for _, flag := range policy.Permissions.Flags() {
		if !letters.Supports(flag) {
			return "", fmt.Errorf(
				"%w: permission %s is not supported by %s resource",
				ErrInvalidPolicy, flag, resourceTypeName(resource.Type()),
			)
		}
	}
	fields := tokenFields{
		Permissions: policy.Permissions.Format(letters),
		Start:       formatTime(policy.Start),
		Expiry:      formatTime(policy.Expiry),
		Identifier:  policy.ID,
		Protocol:    string(protocol),
		Version:     Version,
	}
	query := url.Values{}
	query.Set("sv", fields.Version)
	query.Set("sr", string(resource.Type()))
	setNonEmpty(query, "sp", fields.Permissions)
	setNonEmpty(query, "st", fields.Start)
	setNonEmpty(query, "se", fields.Expiry)
	setNonEmpty(query, "si", fields.Identifier)
	query.Set("spr", fields.Protocol)
	query.Set("sig", s.signature(resource, fields))
	return query.Encode(), nil
}

// Verify checks token signature and time window and returns granted
// permissions.
//
// Stored contains policies of the container, it is used when token
// references policy by identifier.
func (s Signer) Verify(
	token string, resource Resource, now time.Time,
	stored map[string]AccessPolicy,
) (perms.PermissionSet, error) {
	resource.Account = s.Account
	query, err := url.ParseQuery(strings.TrimPrefix(token, "?"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if sr := query.Get("sr"); sr != string(resource.Type()) {
		return nil, fmt.Errorf("%w: unexpected resource type %q", ErrInvalidToken, sr)
	}
	fields := tokenFields{
		Permissions: query.Get("sp"),
		Start:       query.Get("st"),
		Expiry:      query.Get("se"),
		Identifier:  query.Get("si"),
		Protocol:    query.Get("spr"),
		Version:     query.Get("sv"),
	}
	expected := s.signature(resource, fields)
	if !hmac.Equal([]byte(expected), []byte(query.Get("sig"))) {
		return nil, ErrInvalidSignature
	}
	var policy AccessPolicy
	if policy.Start, err = parseTime(fields.Start); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if policy.Expiry, err = parseTime(fields.Expiry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if policy.Permissions, err = perms.Parse(fields.Permissions, resource.Letters()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if id := fields.Identifier; id != "" {
		storedPolicy, ok := stored[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidToken, id)
		}
		policy = policy.merge(storedPolicy)
	}
	if !policy.Start.IsZero() && now.Before(policy.Start) {
		return nil, ErrTokenNotStarted
	}
	if policy.Expiry.IsZero() || !now.Before(policy.Expiry) {
		return nil, ErrTokenExpired
	}
	// Stored policy can contain container permissions like List.
	granted := supportedPermissions(policy.Permissions, resource.Letters())
	if granted.Len() == 0 {
		return nil, fmt.Errorf("%w: token grants no permissions", ErrInvalidToken)
	}
	return granted, nil
}

// supportedPermissions returns permissions of set that have letter in table.
func supportedPermissions(set perms.PermissionSet, letters perms.Letters) perms.PermissionSet {
	result := perms.PermissionSet{}
	for _, flag := range set.Flags() {
		if letters.Supports(flag) {
			result.Add(flag)
		}
	}
	return result
}

// EffectivePolicy returns policy that token with policy grants for
// resource when it references stored policy.
//
// Permissions of stored policy that are not legal for resource are
// dropped.
func EffectivePolicy(
	resource Resource, policy AccessPolicy, stored AccessPolicy,
) AccessPolicy {
	merged := policy.merge(stored)
	merged.Permissions = supportedPermissions(merged.Permissions, resource.Letters())
	return merged
}

// FullURI returns resource URI with token appended.
func FullURI(endpoint string, resource Resource, token string) string {
	uri := strings.TrimRight(endpoint, "/") + "/" + url.PathEscape(resource.Container)
	if resource.Blob != "" {
		parts := strings.Split(resource.Blob, "/")
		for i, part := range parts {
			parts[i] = url.PathEscape(part)
		}
		uri += "/" + strings.Join(parts, "/")
	}
	if token != "" {
		uri += "?" + token
	}
	return uri
}

type tokenFields struct {
	Permissions string
	Start       string
	Expiry      string
	Identifier  string
	Protocol    string
	Version     string
}

func (s Signer) signature(resource Resource, fields tokenFields) string {
	stringToSign := strings.Join([]string{
		fields.Permissions,
		fields.Start,
		fields.Expiry,
		resource.canonicalName(),
		fields.Identifier,
		fields.Protocol,
		fields.Version,
	}, "\n")
	mac := hmac.New(sha256.New, s.Key)
	_, _ = mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func setNonEmpty(query url.Values, key, value string) {
	if value != "" {
		query.Set(key, value)
	}
}

func resourceTypeName(t ResourceType) string {
	if t == ContainerResource {
		return "container"
	}
	return "blob"
}
