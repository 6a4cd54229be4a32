package cmdlet

import (
	"fmt"
	"strings"

	"github.com/udovin/cloudctl/internal/sas"
)

// Nouns used in command names.
const (
	StorageNoun      = "storage"
	BlobNoun         = "blob"
	ContainerNoun    = "container"
	ContainerACLNoun = "set-acl"
	ClusterNoun      = "cluster"
	AddOnNoun        = "addon"
	SettingsNoun     = "settings"
	SASTokenNoun     = "sas"
	PolicyNoun       = "policy"
)

// Public access levels of container.
const (
	ContainerACLOff       = "off"
	ContainerACLBlob      = "blob"
	ContainerACLContainer = "container"
)

// Protocols allowed by shared access signatures.
const (
	HTTP  = "http"
	HTTPS = "https"
)

// StorageAccountName is used in messages about missing account.
const StorageAccountName = "Storage account name"

// Confirmation captions.
const (
	RemoveAddOnCaption     = "Remove add-on"
	RemoveClusterCaption   = "Remove cluster"
	RemoveContainerCaption = "Remove container"
	RemoveBlobCaption      = "Remove blob"
	RemovePolicyCaption    = "Remove stored access policy"
)

// ParseProtocol parses comma separated list of allowed protocols.
//
// Empty string allows only HTTPS.
func ParseProtocol(s string) (sas.Protocol, error) {
	allowHTTP := false
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "", HTTPS:
		case HTTP:
			allowHTTP = true
		default:
			return "", fmt.Errorf("invalid protocol %q (expected %q or %q)", part, HTTPS, HTTP)
		}
	}
	if allowHTTP {
		return sas.HTTPSAndHTTP, nil
	}
	return sas.HTTPSOnly, nil
}
