package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/udovin/cloudctl/internal/cmdlet"
	"github.com/udovin/cloudctl/internal/config"
	"github.com/udovin/cloudctl/internal/management"
	"github.com/udovin/cloudctl/internal/pkg/logs"
)

type managementEnv struct {
	Logger  *logs.Logger
	Client  *management.Client
	Runtime *cmdlet.ConsoleRuntime
}

func getManagementEnv(cmd *cobra.Command) (managementEnv, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return managementEnv{}, err
	}
	if cfg.Management == nil {
		return managementEnv{}, fmt.Errorf("section 'management' should be configured")
	}
	client, err := newManagementClient(*cfg.Management)
	if err != nil {
		return managementEnv{}, err
	}
	runtime, err := getRuntime(cmd)
	if err != nil {
		return managementEnv{}, err
	}
	return managementEnv{
		Logger:  getLogger(cmd, cfg),
		Client:  client,
		Runtime: runtime,
	}, nil
}

func newManagementClient(cfg config.Management) (*management.Client, error) {
	token, err := cfg.Token.Secret()
	if err != nil {
		return nil, err
	}
	return management.NewClient(
		cfg.Endpoint,
		management.WithToken(token),
		management.WithTimeout(time.Duration(cfg.Timeout)),
	), nil
}

func newClusterCmd() *cobra.Command {
	clusterCmd := cobra.Command{
		Use:   cmdlet.ClusterNoun,
		Short: "Manages compute clusters",
	}
	clusterCmd.AddCommand(&cobra.Command{
		Use:   "get [NAME]",
		Short: "Prints cluster or list of clusters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  clusterGetMain,
	})
	newCmd := cobra.Command{
		Use:   "new NAME",
		Short: "Creates cluster",
		Args:  cobra.ExactArgs(1),
		RunE:  clusterNewMain,
	}
	newCmd.Flags().String("location", "", "Cluster location")
	newCmd.Flags().Int("nodes", 1, "Number of cluster nodes")
	newCmd.Flags().String("version", "", "Cluster version")
	newCmd.Flags().String("user", "admin", "HTTP user name")
	newCmd.Flags().String("password", "", "HTTP user password")
	newCmd.Flags().String("storage-account", "", "Default storage account")
	newCmd.Flags().String("storage-container", "", "Default storage container")
	_ = newCmd.MarkFlagRequired("location")
	_ = newCmd.MarkFlagRequired("password")
	clusterCmd.AddCommand(&newCmd)
	removeCmd := cobra.Command{
		Use:   "remove NAME",
		Short: "Removes cluster",
		Args:  cobra.ExactArgs(1),
		RunE:  clusterRemoveMain,
	}
	addRemoveFlags(&removeCmd)
	clusterCmd.AddCommand(&removeCmd)
	return &clusterCmd
}

func clusterGetMain(cmd *cobra.Command, args []string) error {
	env, err := getManagementEnv(cmd)
	if err != nil {
		return err
	}
	c := cmdlet.GetCluster{Client: env.Client, Runtime: env.Runtime}
	if len(args) > 0 {
		c.Name = args[0]
	}
	return executeCommand(cmd, env.Logger, &c)
}

func clusterNewMain(cmd *cobra.Command, args []string) error {
	env, err := getManagementEnv(cmd)
	if err != nil {
		return err
	}
	form := management.CreateClusterForm{Name: args[0]}
	flags := cmd.Flags()
	if form.Location, err = flags.GetString("location"); err != nil {
		return err
	}
	if form.NodeCount, err = flags.GetInt("nodes"); err != nil {
		return err
	}
	if form.Version, err = flags.GetString("version"); err != nil {
		return err
	}
	if form.HTTPUserName, err = flags.GetString("user"); err != nil {
		return err
	}
	if form.HTTPPassword, err = flags.GetString("password"); err != nil {
		return err
	}
	if form.DefaultStorageAccount, err = flags.GetString("storage-account"); err != nil {
		return err
	}
	if form.DefaultStorageContainer, err = flags.GetString("storage-container"); err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &cmdlet.NewCluster{
		Form:    form,
		Client:  env.Client,
		Runtime: env.Runtime,
	})
}

func clusterRemoveMain(cmd *cobra.Command, args []string) error {
	env, err := getManagementEnv(cmd)
	if err != nil {
		return err
	}
	force, passThru, err := getRemoveFlags(cmd)
	if err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &cmdlet.RemoveCluster{
		Name:         args[0],
		Force:        force,
		PassThru:     passThru,
		Client:       env.Client,
		Runtime:      env.Runtime,
		Confirmation: getConfirmation(cmd),
	})
}

func newAddOnCmd() *cobra.Command {
	addOnCmd := cobra.Command{
		Use:   cmdlet.AddOnNoun,
		Short: "Manages store add-ons",
	}
	addOnCmd.AddCommand(&cobra.Command{
		Use:   "get [NAME]",
		Short: "Prints add-on or list of add-ons",
		Args:  cobra.MaximumNArgs(1),
		RunE:  addOnGetMain,
	})
	newCmd := cobra.Command{
		Use:   "new NAME",
		Short: "Purchases add-on",
		Args:  cobra.ExactArgs(1),
		RunE:  addOnNewMain,
	}
	newCmd.Flags().String("type", "", "Add-on identifier, for example \"Search\"")
	newCmd.Flags().String("plan", "", "Add-on plan")
	newCmd.Flags().String("location", "", "Add-on location")
	_ = newCmd.MarkFlagRequired("type")
	_ = newCmd.MarkFlagRequired("plan")
	_ = newCmd.MarkFlagRequired("location")
	addOnCmd.AddCommand(&newCmd)
	removeCmd := cobra.Command{
		Use:   "remove NAME",
		Short: "Removes add-on",
		Args:  cobra.ExactArgs(1),
		RunE:  addOnRemoveMain,
	}
	addRemoveFlags(&removeCmd)
	addOnCmd.AddCommand(&removeCmd)
	return &addOnCmd
}

func addOnGetMain(cmd *cobra.Command, args []string) error {
	env, err := getManagementEnv(cmd)
	if err != nil {
		return err
	}
	c := cmdlet.GetAddOn{Client: env.Client, Runtime: env.Runtime}
	if len(args) > 0 {
		c.Name = args[0]
	}
	return executeCommand(cmd, env.Logger, &c)
}

func addOnNewMain(cmd *cobra.Command, args []string) error {
	env, err := getManagementEnv(cmd)
	if err != nil {
		return err
	}
	form := management.CreateAddOnForm{Name: args[0]}
	flags := cmd.Flags()
	if form.Type, err = flags.GetString("type"); err != nil {
		return err
	}
	if form.Plan, err = flags.GetString("plan"); err != nil {
		return err
	}
	if form.Location, err = flags.GetString("location"); err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &cmdlet.NewAddOn{
		Form:    form,
		Client:  env.Client,
		Runtime: env.Runtime,
	})
}

func addOnRemoveMain(cmd *cobra.Command, args []string) error {
	env, err := getManagementEnv(cmd)
	if err != nil {
		return err
	}
	force, passThru, err := getRemoveFlags(cmd)
	if err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &cmdlet.RemoveAddOn{
		Name:         args[0],
		Force:        force,
		PassThru:     passThru,
		Client:       env.Client,
		Runtime:      env.Runtime,
		Confirmation: getConfirmation(cmd),
	})
}
