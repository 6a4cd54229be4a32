package cmdlet

import (
	"context"
	"fmt"

	"github.com/udovin/cloudctl/internal/project"
)

// SetSettings updates settings of cloud service project.
type SetSettings struct {
	// Dir is directory inside of project.
	Dir      string
	Form     project.SettingsForm
	PassThru bool
	Runtime  Runtime
}

func (c *SetSettings) Execute(ctx context.Context) error {
	if c.Form.Empty() {
		return fmt.Errorf("at least one setting should be specified")
	}
	root, err := project.FindServiceRoot(c.Dir)
	if err != nil {
		return err
	}
	path := project.SettingsPath(root)
	settings, err := project.LoadSettings(path)
	if err != nil {
		return err
	}
	if err := settings.Update(c.Form); err != nil {
		return err
	}
	if err := project.SaveSettings(path, settings); err != nil {
		return err
	}
	if c.PassThru {
		return c.Runtime.WriteObject(settings)
	}
	return nil
}
