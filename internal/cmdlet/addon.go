package cmdlet

import (
	"context"
	"fmt"

	"github.com/udovin/cloudctl/internal/management"
)

// AddOnClient represents client of add-on management API.
type AddOnClient interface {
	ObserveAddOns(ctx context.Context) (management.AddOns, error)
	ObserveAddOn(ctx context.Context, name string) (management.AddOn, error)
	CreateAddOn(ctx context.Context, form management.CreateAddOnForm) (management.AddOn, error)
	DeleteAddOn(ctx context.Context, name string) (management.AddOn, error)
}

// GetAddOn writes add-on with Name or all add-ons.
type GetAddOn struct {
	Name    string
	Client  AddOnClient
	Runtime Runtime
}

func (c *GetAddOn) Execute(ctx context.Context) error {
	if c.Name != "" {
		addon, err := c.Client.ObserveAddOn(ctx, c.Name)
		if err != nil {
			return err
		}
		return c.Runtime.WriteObject(addon)
	}
	addons, err := c.Client.ObserveAddOns(ctx)
	if err != nil {
		return err
	}
	return c.Runtime.WriteObject(addons.AddOns)
}

// NewAddOn purchases add-on.
type NewAddOn struct {
	Form    management.CreateAddOnForm
	Client  AddOnClient
	Runtime Runtime
}

func (c *NewAddOn) Execute(ctx context.Context) error {
	if err := c.Form.Validate(); err != nil {
		return err
	}
	addon, err := c.Client.CreateAddOn(ctx, c.Form)
	if err != nil {
		return err
	}
	return c.Runtime.WriteObject(addon)
}

// RemoveAddOn removes add-on.
type RemoveAddOn struct {
	Name         string
	Force        bool
	PassThru     bool
	Client       AddOnClient
	Runtime      Runtime
	Confirmation Confirmation
}

func (c *RemoveAddOn) Execute(ctx context.Context) error {
	if !shouldProcess(
		c.Force, c.Confirmation, RemoveAddOnCaption, removeAddOnMessage(c.Name),
	) {
		return nil
	}
	if _, err := c.Client.DeleteAddOn(ctx, c.Name); err != nil {
		return err
	}
	if c.PassThru {
		return c.Runtime.WriteObject(true)
	}
	return nil
}

func removeAddOnMessage(name string) string {
	return fmt.Sprintf(
		"Add-on %q will be removed. Charges already incurred are not refunded.", name,
	)
}
