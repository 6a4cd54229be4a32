package perms

import (
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Permission represents single capability that can be granted on resource.
type Permission int

const (
	// Read allows reading resource content and metadata.
	Read Permission = iota + 1
	// Add allows adding messages or entities.
	Add
	// Create allows creating new resources.
	Create
	// Write allows creating or overwriting resource content.
	Write
	// Delete allows deleting resource.
	Delete
	// List allows listing child resources.
	List
	// Update allows updating messages or entities.
	Update
	// Process allows processing (dequeuing) messages.
	Process
)

var permissionNames = map[Permission]string{
	Read:    "Read",
	Add:     "Add",
	Create:  "Create",
	Write:   "Write",
	Delete:  "Delete",
	List:    "List",
	Update:  "Update",
	Process: "Process",
}

// String returns name of permission.
func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return "Permission(" + strconv.Itoa(int(p)) + ")"
}

// Permissions represents read-only view of permission set.
type Permissions interface {
	Has(permission Permission) bool
}

// PermissionSet represents unordered set of distinct permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet returns set that contains specified permissions.
func NewPermissionSet(permissions ...Permission) PermissionSet {
	p := PermissionSet{}
	p.Add(permissions...)
	return p
}

func (p PermissionSet) Add(permissions ...Permission) {
	for _, permission := range permissions {
		p[permission] = struct{}{}
	}
}

func (p PermissionSet) Has(permission Permission) bool {
	_, ok := p[permission]
	return ok
}

func (p PermissionSet) Len() int {
	return len(p)
}

func (p PermissionSet) Clone() PermissionSet {
	clone := PermissionSet{}
	for key := range p {
		clone[key] = struct{}{}
	}
	return clone
}

// Equal returns true when both sets contain the same permissions.
//
// Nil and empty sets are equal.
func (p PermissionSet) Equal(o PermissionSet) bool {
	if len(p) != len(o) {
		return false
	}
	for key := range p {
		if _, ok := o[key]; !ok {
			return false
		}
	}
	return true
}

// Flags returns permissions sorted in canonical order.
func (p PermissionSet) Flags() []Permission {
	flags := maps.Keys(p)
	slices.Sort(flags)
	return flags
}

// Format renders permissions as letters from specified table in
// canonical order.
//
// Permissions that are missing in table are skipped.
func (p PermissionSet) Format(letters Letters) string {
	index := letters.index()
	var result strings.Builder
	for _, flag := range p.Flags() {
		if letter, ok := index[flag]; ok {
			result.WriteRune(letter)
		}
	}
	return result.String()
}

func (p PermissionSet) String() string {
	flags := p.Flags()
	names := make([]string, len(flags))
	for i, flag := range flags {
		names[i] = flag.String()
	}
	return "{" + strings.Join(names, ", ") + "}"
}
