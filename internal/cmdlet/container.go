package cmdlet

import (
	"context"
	"fmt"
	"time"

	"github.com/udovin/cloudctl/internal/sas"
	"github.com/udovin/cloudctl/internal/storage"
)

// NewContainer creates container.
type NewContainer struct {
	Name string
	// Permission contains public access level, "off" by default.
	Permission string
	Storage    storage.Storage
	Runtime    Runtime
}

func (c *NewContainer) Execute(ctx context.Context) error {
	access, err := storage.ParsePublicAccess(c.Permission)
	if err != nil {
		return err
	}
	container, err := c.Storage.CreateContainer(ctx, c.Name, access)
	if err != nil {
		return err
	}
	return c.Runtime.WriteObject(container)
}

// GetContainer writes container with Name or all containers with Prefix.
type GetContainer struct {
	Name    string
	Prefix  string
	Storage storage.Storage
	Runtime Runtime
}

func (c *GetContainer) Execute(ctx context.Context) error {
	if c.Name != "" {
		container, err := c.Storage.GetContainer(ctx, c.Name)
		if err != nil {
			return err
		}
		return c.Runtime.WriteObject(container)
	}
	containers, err := c.Storage.ListContainers(ctx, c.Prefix)
	if err != nil {
		return err
	}
	if containers == nil {
		containers = []storage.Container{}
	}
	return c.Runtime.WriteObject(containers)
}

// RemoveContainer removes container with all blobs.
type RemoveContainer struct {
	Name         string
	Force        bool
	PassThru     bool
	Storage      storage.Storage
	Runtime      Runtime
	Confirmation Confirmation
}

func (c *RemoveContainer) Execute(ctx context.Context) error {
	if !shouldProcess(
		c.Force, c.Confirmation, RemoveContainerCaption,
		fmt.Sprintf("Container %q and all its blobs will be removed.", c.Name),
	) {
		return nil
	}
	if err := c.Storage.DeleteContainer(ctx, c.Name); err != nil {
		return err
	}
	if c.PassThru {
		return c.Runtime.WriteObject(true)
	}
	return nil
}

// SetContainerACL changes public access level of container.
type SetContainerACL struct {
	Name       string
	Permission string
	PassThru   bool
	Storage    storage.Storage
	Runtime    Runtime
}

func (c *SetContainerACL) Execute(ctx context.Context) error {
	access, err := storage.ParsePublicAccess(c.Permission)
	if err != nil {
		return err
	}
	container, err := c.Storage.SetContainerACL(ctx, c.Name, access)
	if err != nil {
		return err
	}
	if c.PassThru {
		return c.Runtime.WriteObject(container)
	}
	return nil
}

// SASToken contains parameters shared by token commands.
type SASToken struct {
	// Policy contains identifier of stored access policy.
	Policy string
	// Permission contains permission letters, for example "rwd".
	Permission string
	Protocol   string
	Start      time.Time
	Expiry     time.Time
	// FullURI makes command write resource URI with token.
	FullURI  bool
	Endpoint string
	Signer   *sas.Signer
	Storage  storage.Storage
	Runtime  Runtime
}

// newPolicy returns policy built from parameters.
//
// Permissions are parsed with letters legal for resource. Policy that
// references stored policy should grant permissions and expire together
// with it.
func (t *SASToken) newPolicy(container storage.Container, resource sas.Resource) (sas.AccessPolicy, error) {
	policy := sas.AccessPolicy{
		ID:     t.Policy,
		Start:  t.Start,
		Expiry: t.Expiry,
	}
	if err := policy.SetPermissions(t.Permission, resource.Letters()); err != nil {
		return sas.AccessPolicy{}, err
	}
	if t.Policy == "" {
		return policy, nil
	}
	stored, ok := container.Policies[t.Policy]
	if !ok {
		return sas.AccessPolicy{}, policyNotFound(t.Policy, container.Name)
	}
	if !stored.Expiry.IsZero() && !t.Expiry.IsZero() {
		return sas.AccessPolicy{}, fmt.Errorf(
			"expiry time is already specified by policy %q", t.Policy,
		)
	}
	if stored.Permissions.Len() > 0 && policy.Permissions.Len() > 0 {
		return sas.AccessPolicy{}, fmt.Errorf(
			"permissions are already specified by policy %q", t.Policy,
		)
	}
	effective := sas.EffectivePolicy(resource, policy, stored)
	if effective.Expiry.IsZero() {
		return sas.AccessPolicy{}, fmt.Errorf(
			"expiry time is specified neither by token nor by policy %q", t.Policy,
		)
	}
	if effective.Permissions.Len() == 0 {
		return sas.AccessPolicy{}, fmt.Errorf(
			"policy %q has no permissions for %s", t.Policy, resourceName(resource),
		)
	}
	if !effective.Start.IsZero() && !effective.Expiry.After(effective.Start) {
		return sas.AccessPolicy{}, fmt.Errorf(
			"expiry time should be after start time of policy %q", t.Policy,
		)
	}
	return policy, nil
}

func resourceName(resource sas.Resource) string {
	if resource.Blob != "" {
		return fmt.Sprintf("blob %q", resource.Blob)
	}
	return fmt.Sprintf("container %q", resource.Container)
}

func (t *SASToken) write(resource sas.Resource, policy sas.AccessPolicy) error {
	if t.Signer == nil {
		return fmt.Errorf("%s is not configured", StorageAccountName)
	}
	protocol, err := ParseProtocol(t.Protocol)
	if err != nil {
		return err
	}
	token, err := t.Signer.Sign(resource, policy, protocol)
	if err != nil {
		return err
	}
	if t.FullURI {
		return t.Runtime.WriteObject(sas.FullURI(t.Endpoint, resource, token))
	}
	return t.Runtime.WriteObject(token)
}

// NewContainerSASToken writes shared access signature for container.
type NewContainerSASToken struct {
	SASToken
	Name string
}

func (c *NewContainerSASToken) Execute(ctx context.Context) error {
	container, err := c.Storage.GetContainer(ctx, c.Name)
	if err != nil {
		return err
	}
	resource := sas.Resource{Container: c.Name}
	policy, err := c.newPolicy(container, resource)
	if err != nil {
		return err
	}
	return c.write(resource, policy)
}
