// Package management contains client and data types of remote
// management API for clusters and add-ons.
package management

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// RunningState is state of ready to use resource.
const RunningState = "Running"

// Cluster represents compute cluster.
type Cluster struct {
	Name                    string `json:"name"`
	Location                string `json:"location"`
	State                   string `json:"state"`
	NodeCount               int    `json:"node_count"`
	Version                 string `json:"version"`
	ConnectionURL           string `json:"connection_url"`
	HTTPUserName            string `json:"http_user_name"`
	DefaultStorageAccount   string `json:"default_storage_account,omitempty"`
	DefaultStorageContainer string `json:"default_storage_container,omitempty"`
	CreateTime              int64  `json:"create_time"`
}

// Clusters represents list of clusters.
type Clusters struct {
	Clusters []Cluster `json:"clusters"`
}

// AddOn represents add-on purchased from store.
type AddOn struct {
	Name string `json:"name"`
	// Type contains identifier of add-on, for example "Search".
	Type     string `json:"type"`
	Plan     string `json:"plan"`
	Location string `json:"location"`
	State    string `json:"state"`
}

// AddOns represents list of add-ons.
type AddOns struct {
	AddOns []AddOn `json:"addons"`
}

// DefaultClusterVersion is used when form does not specify version.
const DefaultClusterVersion = "3.1"

const maxClusterNodes = 64

var (
	clusterNameRegexp = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9\-]{1,48}[a-zA-Z0-9]$`)
	addOnNameRegexp   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-]{0,99}$`)
)

type CreateClusterForm struct {
	Name                    string `json:"name"`
	Location                string `json:"location"`
	NodeCount               int    `json:"node_count"`
	Version                 string `json:"version,omitempty"`
	HTTPUserName            string `json:"http_user_name"`
	HTTPPassword            string `json:"http_password"`
	DefaultStorageAccount   string `json:"default_storage_account,omitempty"`
	DefaultStorageContainer string `json:"default_storage_container,omitempty"`
}

// Validate checks form fields.
func (f CreateClusterForm) Validate() error {
	errors := ErrorFields{}
	if !clusterNameRegexp.MatchString(f.Name) {
		errors["name"] = ErrorField{
			Message: "name should contain from 3 to 50 letters, digits or hyphens and start with letter",
		}
	}
	if strings.TrimSpace(f.Location) == "" {
		errors["location"] = ErrorField{Message: "location is required"}
	}
	if f.NodeCount < 1 || f.NodeCount > maxClusterNodes {
		errors["node_count"] = ErrorField{Message: "node count should be from 1 to 64"}
	}
	if f.HTTPUserName == "" {
		errors["http_user_name"] = ErrorField{Message: "user name is required"}
	}
	if len(f.HTTPPassword) < 10 {
		errors["http_password"] = ErrorField{Message: "password should contain at least 10 characters"}
	}
	if f.DefaultStorageContainer != "" && f.DefaultStorageAccount == "" {
		errors["default_storage_account"] = ErrorField{
			Message: "storage account is required when container is specified",
		}
	}
	if len(errors) > 0 {
		return &ErrorResponse{
			Code:          http.StatusBadRequest,
			Message:       "form has invalid fields",
			InvalidFields: errors,
		}
	}
	return nil
}

type CreateAddOnForm struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Plan     string `json:"plan"`
	Location string `json:"location"`
}

// Validate checks form fields.
func (f CreateAddOnForm) Validate() error {
	errors := ErrorFields{}
	if !addOnNameRegexp.MatchString(f.Name) {
		errors["name"] = ErrorField{
			Message: "name should contain up to 100 letters, digits, underscores or hyphens and start with letter",
		}
	}
	if f.Type == "" {
		errors["type"] = ErrorField{Message: "type is required"}
	}
	if f.Plan == "" {
		errors["plan"] = ErrorField{Message: "plan is required"}
	}
	if strings.TrimSpace(f.Location) == "" {
		errors["location"] = ErrorField{Message: "location is required"}
	}
	if len(errors) > 0 {
		return &ErrorResponse{
			Code:          http.StatusBadRequest,
			Message:       "form has invalid fields",
			InvalidFields: errors,
		}
	}
	return nil
}

type ErrorField struct {
	Message string `json:"message"`
}

type ErrorFields map[string]ErrorField

// ErrorResponse represents error returned by management API.
type ErrorResponse struct {
	Code          int         `json:"-"`
	Message       string      `json:"message"`
	InvalidFields ErrorFields `json:"invalid_fields,omitempty"`
}

// StatusCode returns response status code.
func (r ErrorResponse) StatusCode() int {
	return r.Code
}

// Error returns response error message.
func (r ErrorResponse) Error() string {
	var result strings.Builder
	result.WriteString(r.Message)
	if len(r.InvalidFields) > 0 {
		result.WriteString(" (invalid fields: ")
		fields := maps.Keys(r.InvalidFields)
		slices.Sort(fields)
		for i, field := range fields {
			if i > 0 {
				result.WriteString(", ")
			}
			result.WriteString(field)
		}
		result.WriteRune(')')
	}
	return result.String()
}

// IsNotFound returns true when err is API response with 404 code.
func IsNotFound(err error) bool {
	var resp *ErrorResponse
	return errors.As(err, &resp) && resp.Code == http.StatusNotFound
}
