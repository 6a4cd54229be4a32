package cmdlet

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/udovin/cloudctl/internal/perms"
	"github.com/udovin/cloudctl/internal/sas"
	"github.com/udovin/cloudctl/internal/storage"
)

// SetContainerPolicy creates or updates stored access policy of container.
type SetContainerPolicy struct {
	Container string
	ID        string
	// Permission contains permission letters, empty string keeps
	// permissions of existing policy.
	Permission string
	// Start and Expiry are changed only when they are not zero.
	Start    time.Time
	Expiry   time.Time
	PassThru bool
	Storage  storage.Storage
	Runtime  Runtime
}

func (c *SetContainerPolicy) Execute(ctx context.Context) error {
	container, err := c.Storage.GetContainer(ctx, c.Container)
	if err != nil {
		return err
	}
	policies := clonePolicies(container.Policies)
	policy, ok := policies[c.ID]
	if !ok {
		policy = sas.AccessPolicy{ID: c.ID}
	}
	if err := policy.SetPermissions(c.Permission, perms.ContainerLetters); err != nil {
		return err
	}
	if !c.Start.IsZero() {
		policy.Start = c.Start
	}
	if !c.Expiry.IsZero() {
		policy.Expiry = c.Expiry
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	policies[c.ID] = policy
	updated, err := c.Storage.SetContainerPolicies(ctx, c.Container, policies)
	if err != nil {
		return err
	}
	if c.PassThru {
		return c.Runtime.WriteObject(updated.Policies[c.ID])
	}
	return nil
}

// GetContainerPolicy writes stored policy with ID or all stored policies
// of container ordered by identifier.
type GetContainerPolicy struct {
	Container string
	ID        string
	Storage   storage.Storage
	Runtime   Runtime
}

func (c *GetContainerPolicy) Execute(ctx context.Context) error {
	container, err := c.Storage.GetContainer(ctx, c.Container)
	if err != nil {
		return err
	}
	if c.ID != "" {
		policy, ok := container.Policies[c.ID]
		if !ok {
			return policyNotFound(c.ID, c.Container)
		}
		return c.Runtime.WriteObject(policy)
	}
	ids := maps.Keys(container.Policies)
	slices.Sort(ids)
	policies := make([]sas.AccessPolicy, 0, len(ids))
	for _, id := range ids {
		policies = append(policies, container.Policies[id])
	}
	return c.Runtime.WriteObject(policies)
}

// RemoveContainerPolicy removes stored access policy of container.
//
// Tokens that reference removed policy stop working.
type RemoveContainerPolicy struct {
	Container    string
	ID           string
	Force        bool
	PassThru     bool
	Storage      storage.Storage
	Runtime      Runtime
	Confirmation Confirmation
}

func (c *RemoveContainerPolicy) Execute(ctx context.Context) error {
	container, err := c.Storage.GetContainer(ctx, c.Container)
	if err != nil {
		return err
	}
	if _, ok := container.Policies[c.ID]; !ok {
		return policyNotFound(c.ID, c.Container)
	}
	if !shouldProcess(
		c.Force, c.Confirmation, RemovePolicyCaption,
		fmt.Sprintf(
			"Policy %q of container %q will be removed, tokens that reference it will be revoked.",
			c.ID, c.Container,
		),
	) {
		return nil
	}
	policies := clonePolicies(container.Policies)
	delete(policies, c.ID)
	if _, err := c.Storage.SetContainerPolicies(ctx, c.Container, policies); err != nil {
		return err
	}
	if c.PassThru {
		return c.Runtime.WriteObject(true)
	}
	return nil
}

func clonePolicies(policies map[string]sas.AccessPolicy) map[string]sas.AccessPolicy {
	result := make(map[string]sas.AccessPolicy, len(policies)+1)
	for id, policy := range policies {
		result[id] = policy
	}
	return result
}

func policyNotFound(id, container string) error {
	return fmt.Errorf("policy %q is not found in container %q", id, container)
}
