package cmdlet

import (
	"context"
	"fmt"

	"github.com/udovin/cloudctl/internal/management"
)

// ClusterClient represents client of cluster management API.
type ClusterClient interface {
	ObserveClusters(ctx context.Context) (management.Clusters, error)
	ObserveCluster(ctx context.Context, name string) (management.Cluster, error)
	CreateCluster(ctx context.Context, form management.CreateClusterForm) (management.Cluster, error)
	DeleteCluster(ctx context.Context, name string) (management.Cluster, error)
}

// GetCluster writes cluster with Name or all clusters.
type GetCluster struct {
	Name    string
	Client  ClusterClient
	Runtime Runtime
}

func (c *GetCluster) Execute(ctx context.Context) error {
	if c.Name != "" {
		cluster, err := c.Client.ObserveCluster(ctx, c.Name)
		if err != nil {
			return err
		}
		return c.Runtime.WriteObject(cluster)
	}
	clusters, err := c.Client.ObserveClusters(ctx)
	if err != nil {
		return err
	}
	if len(clusters.Clusters) == 0 {
		c.Runtime.WriteWarning("No clusters found.")
	}
	return c.Runtime.WriteObject(clusters.Clusters)
}

// NewCluster creates cluster.
type NewCluster struct {
	Form    management.CreateClusterForm
	Client  ClusterClient
	Runtime Runtime
}

func (c *NewCluster) Execute(ctx context.Context) error {
	if err := c.Form.Validate(); err != nil {
		return err
	}
	cluster, err := c.Client.CreateCluster(ctx, c.Form)
	if err != nil {
		return err
	}
	return c.Runtime.WriteObject(cluster)
}

// RemoveCluster removes cluster.
type RemoveCluster struct {
	Name         string
	Force        bool
	PassThru     bool
	Client       ClusterClient
	Runtime      Runtime
	Confirmation Confirmation
}

func (c *RemoveCluster) Execute(ctx context.Context) error {
	if !shouldProcess(
		c.Force, c.Confirmation, RemoveClusterCaption,
		fmt.Sprintf("Cluster %q will be removed.", c.Name),
	) {
		return nil
	}
	if _, err := c.Client.DeleteCluster(ctx, c.Name); err != nil {
		if management.IsNotFound(err) {
			return fmt.Errorf("cluster %q does not exist: %w", c.Name, err)
		}
		return err
	}
	if c.PassThru {
		return c.Runtime.WriteObject(true)
	}
	return nil
}
