package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/udovin/cloudctl/internal/cmdlet"
	"github.com/udovin/cloudctl/internal/config"
	"github.com/udovin/cloudctl/internal/project"
)

func newSettingsCmd() *cobra.Command {
	settingsCmd := cobra.Command{
		Use:   cmdlet.SettingsNoun,
		Short: "Manages settings of cloud service project",
	}
	setCmd := cobra.Command{
		Use:   "set",
		Short: "Updates settings of project in current directory",
		Args:  cobra.NoArgs,
		RunE:  settingsSetMain,
	}
	setCmd.Flags().String("subscription", "", "Subscription name")
	setCmd.Flags().String("location", "", "Deployment location")
	setCmd.Flags().String("storage-account", "", "Storage account name")
	setCmd.Flags().String("slot", "", "Deployment slot (production or staging)")
	setCmd.Flags().String("dir", "", "Directory inside of project, current by default")
	setCmd.Flags().Bool("pass-thru", false, "Print updated settings")
	settingsCmd.AddCommand(&setCmd)
	return &settingsCmd
}

func settingsSetMain(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	var form project.SettingsForm
	var err error
	if form.Subscription, err = flags.GetString("subscription"); err != nil {
		return err
	}
	if form.Location, err = flags.GetString("location"); err != nil {
		return err
	}
	if form.StorageAccountName, err = flags.GetString("storage-account"); err != nil {
		return err
	}
	if form.Slot, err = flags.GetString("slot"); err != nil {
		return err
	}
	dir, err := flags.GetString("dir")
	if err != nil {
		return err
	}
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return err
		}
	}
	passThru, err := flags.GetBool("pass-thru")
	if err != nil {
		return err
	}
	runtime, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	// Config is optional for project commands.
	cfg, err := getConfig(cmd)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = config.Config{}
	}
	return executeCommand(cmd, getLogger(cmd, cfg), &cmdlet.SetSettings{
		Dir:      dir,
		Form:     form,
		PassThru: passThru,
		Runtime:  runtime,
	})
}
