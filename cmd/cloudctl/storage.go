package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/udovin/cloudctl/internal/cmdlet"
	"github.com/udovin/cloudctl/internal/config"
	"github.com/udovin/cloudctl/internal/pkg/logs"
	"github.com/udovin/cloudctl/internal/sas"
	"github.com/udovin/cloudctl/internal/storage"
)

type storageEnv struct {
	Config  config.Config
	Logger  *logs.Logger
	Storage storage.Storage
	Runtime *cmdlet.ConsoleRuntime
}

func getStorageEnv(cmd *cobra.Command) (storageEnv, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return storageEnv{}, err
	}
	if cfg.Storage == nil {
		return storageEnv{}, fmt.Errorf("section 'storage' should be configured")
	}
	s, err := storage.NewStorage(*cfg.Storage)
	if err != nil {
		return storageEnv{}, err
	}
	runtime, err := getRuntime(cmd)
	if err != nil {
		return storageEnv{}, err
	}
	return storageEnv{
		Config:  cfg,
		Logger:  getLogger(cmd, cfg),
		Storage: s,
		Runtime: runtime,
	}, nil
}

// parseTokenTime parses RFC 3339 time or duration relative to now.
func parseTokenTime(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return now.Add(d).UTC().Truncate(time.Second), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: expected RFC 3339 time or duration", value)
	}
	return t.UTC(), nil
}

func addSASTokenFlags(cmd *cobra.Command) {
	cmd.Flags().String("policy", "", "Stored access policy identifier")
	cmd.Flags().String("permission", "", "Permission letters, for example \"rwd\"")
	cmd.Flags().String(
		"protocol", cmdlet.HTTPS,
		fmt.Sprintf("Allowed protocols (%q or %q)", cmdlet.HTTPS, cmdlet.HTTPS+","+cmdlet.HTTP),
	)
	cmd.Flags().String("start", "", "Start time (RFC 3339 or duration from now)")
	cmd.Flags().String("expiry", "1h", "Expiry time (RFC 3339 or duration from now)")
	cmd.Flags().Bool("full-uri", false, "Print resource URI with token")
}

func getSASToken(cmd *cobra.Command, env storageEnv) (cmdlet.SASToken, error) {
	token := cmdlet.SASToken{
		Storage: env.Storage,
		Runtime: env.Runtime,
	}
	var err error
	if token.Policy, err = cmd.Flags().GetString("policy"); err != nil {
		return cmdlet.SASToken{}, err
	}
	if token.Permission, err = cmd.Flags().GetString("permission"); err != nil {
		return cmdlet.SASToken{}, err
	}
	if token.Protocol, err = cmd.Flags().GetString("protocol"); err != nil {
		return cmdlet.SASToken{}, err
	}
	if token.FullURI, err = cmd.Flags().GetBool("full-uri"); err != nil {
		return cmdlet.SASToken{}, err
	}
	now := time.Now()
	start, err := cmd.Flags().GetString("start")
	if err != nil {
		return cmdlet.SASToken{}, err
	}
	if token.Start, err = parseTokenTime(start, now); err != nil {
		return cmdlet.SASToken{}, err
	}
	expiry, err := cmd.Flags().GetString("expiry")
	if err != nil {
		return cmdlet.SASToken{}, err
	}
	// Stored policy can define expiry itself.
	if token.Policy != "" && !cmd.Flags().Changed("expiry") {
		expiry = ""
	}
	if token.Expiry, err = parseTokenTime(expiry, now); err != nil {
		return cmdlet.SASToken{}, err
	}
	if account := env.Config.Account; account != nil {
		key, err := account.Key.Secret()
		if err != nil {
			return cmdlet.SASToken{}, err
		}
		if token.Signer, err = sas.NewSigner(account.Name, key); err != nil {
			return cmdlet.SASToken{}, err
		}
		token.Endpoint = account.Endpoint()
	}
	return token, nil
}

func newStorageCmd() *cobra.Command {
	storageCmd := cobra.Command{
		Use:   cmdlet.StorageNoun,
		Short: "Manages storage containers and blobs",
	}
	storageCmd.AddCommand(newContainerCmd())
	storageCmd.AddCommand(newBlobCmd())
	return &storageCmd
}

var aclUsage = fmt.Sprintf(
	"Public access level (%s)",
	strings.Join([]string{
		cmdlet.ContainerACLOff, cmdlet.ContainerACLBlob, cmdlet.ContainerACLContainer,
	}, ", "),
)

func newContainerCmd() *cobra.Command {
	containerCmd := cobra.Command{
		Use:   cmdlet.ContainerNoun,
		Short: "Manages containers",
	}
	newCmd := cobra.Command{
		Use:   "new NAME",
		Short: "Creates container",
		Args:  cobra.ExactArgs(1),
		RunE:  containerNewMain,
	}
	newCmd.Flags().String("permission", cmdlet.ContainerACLOff, aclUsage)
	containerCmd.AddCommand(&newCmd)
	getCmd := cobra.Command{
		Use:   "get [NAME]",
		Short: "Prints container or list of containers",
		Args:  cobra.MaximumNArgs(1),
		RunE:  containerGetMain,
	}
	getCmd.Flags().String("prefix", "", "Container name prefix")
	containerCmd.AddCommand(&getCmd)
	removeCmd := cobra.Command{
		Use:   "remove NAME",
		Short: "Removes container with all blobs",
		Args:  cobra.ExactArgs(1),
		RunE:  containerRemoveMain,
	}
	addRemoveFlags(&removeCmd)
	containerCmd.AddCommand(&removeCmd)
	aclCmd := cobra.Command{
		Use:   cmdlet.ContainerACLNoun + " NAME",
		Short: "Changes public access level of container",
		Args:  cobra.ExactArgs(1),
		RunE:  containerSetACLMain,
	}
	aclCmd.Flags().String("permission", "", aclUsage)
	aclCmd.Flags().Bool("pass-thru", false, "Print updated container")
	_ = aclCmd.MarkFlagRequired("permission")
	containerCmd.AddCommand(&aclCmd)
	sasCmd := cobra.Command{
		Use:   cmdlet.SASTokenNoun + " NAME",
		Short: "Prints shared access signature token for container",
		Args:  cobra.ExactArgs(1),
		RunE:  containerSASMain,
	}
	addSASTokenFlags(&sasCmd)
	containerCmd.AddCommand(&sasCmd)
	containerCmd.AddCommand(newPolicyCmd())
	return &containerCmd
}

func newPolicyCmd() *cobra.Command {
	policyCmd := cobra.Command{
		Use:   cmdlet.PolicyNoun,
		Short: "Manages stored access policies of container",
	}
	setCmd := cobra.Command{
		Use:   "set CONTAINER ID",
		Short: "Creates or updates stored access policy",
		Args:  cobra.ExactArgs(2),
		RunE:  policySetMain,
	}
	setCmd.Flags().String("permission", "", "Permission letters, current permissions are kept when empty")
	setCmd.Flags().String("start", "", "Start time (RFC 3339 or duration from now)")
	setCmd.Flags().String("expiry", "", "Expiry time (RFC 3339 or duration from now)")
	setCmd.Flags().Bool("pass-thru", false, "Print updated policy")
	policyCmd.AddCommand(&setCmd)
	getCmd := cobra.Command{
		Use:   "get CONTAINER [ID]",
		Short: "Prints stored access policy or list of policies",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  policyGetMain,
	}
	policyCmd.AddCommand(&getCmd)
	removeCmd := cobra.Command{
		Use:   "remove CONTAINER ID",
		Short: "Removes stored access policy",
		Args:  cobra.ExactArgs(2),
		RunE:  policyRemoveMain,
	}
	addRemoveFlags(&removeCmd)
	policyCmd.AddCommand(&removeCmd)
	return &policyCmd
}

func addRemoveFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("force", "f", false, "Do not ask for confirmation")
	cmd.Flags().Bool("pass-thru", false, "Print true on success")
}

func getRemoveFlags(cmd *cobra.Command) (force bool, passThru bool, err error) {
	if force, err = cmd.Flags().GetBool("force"); err != nil {
		return
	}
	passThru, err = cmd.Flags().GetBool("pass-thru")
	return
}

func containerNewMain(cmd *cobra.Command, args []string) error {
	env, err := getStorageEnv(cmd)
	if err != nil {
		return err
	}
	permission, err := cmd.Flags().GetString("permission")
	if err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &cmdlet.NewContainer{
		Name:       args[0],
		Permission: permission,
		Storage:    env.Storage,
		Runtime:    env.Runtime,
	})
}

func containerGetMain(cmd *cobra.Command, args []string) error {
	env, err := getStorageEnv(cmd)
	if err != nil {
		return err
	}
	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return err
	}
	c := cmdlet.GetContainer{
		Prefix:  prefix,
		Storage: env.Storage,
		Runtime: env.Runtime,
	}
	if len(args) > 0 {
		c.Name = args[0]
	}
	return executeCommand(cmd, env.Logger, &c)
}

func containerRemoveMain(cmd *cobra.Command, args []string) error {
	env, err := getStorageEnv(cmd)
	if err != nil {
		return err
	}
	force, passThru, err := getRemoveFlags(cmd)
	if err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &cmdlet.RemoveContainer{
		Name:         args[0],
		Force:        force,
		PassThru:     passThru,
		Storage:      env.Storage,
		Runtime:      env.Runtime,
		Confirmation: getConfirmation(cmd),
	})
}

func containerSetACLMain(cmd *cobra.Command, args []string) error {
	env, err := getStorageEnv(cmd)
	if err != nil {
		return err
	}
	permission, err := cmd.Flags().GetString("permission")
	if err != nil {
		return err
	}
	passThru, err := cmd.Flags().GetBool("pass-thru")
	if err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &cmdlet.SetContainerACL{
		Name:       args[0],
		Permission: permission,
		PassThru:   passThru,
		Storage:    env.Storage,
		Runtime:    env.Runtime,
	})
}

func containerSASMain(cmd *cobra.Command, args []string) error {
	env, err := getStorageEnv(cmd)
	if err != nil {
		return err
	}
	token, err := getSASToken(cmd, env)
	if err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &cmdlet.NewContainerSASToken{
		SASToken: token,
		Name:     args[0],
	})
}

func policySetMain(cmd *cobra.Command, args []string) error {
	env, err := getStorageEnv(cmd)
	if err != nil {
		return err
	}
	c := cmdlet.SetContainerPolicy{
		Container: args[0],
		ID:        args[1],
		Storage:   env.Storage,
		Runtime:   env.Runtime,
	}
	flags := cmd.Flags()
	if c.Permission, err = flags.GetString("permission"); err != nil {
		return err
	}
	if c.PassThru, err = flags.GetBool("pass-thru"); err != nil {
		return err
	}
	now := time.Now()
	start, err := flags.GetString("start")
	if err != nil {
		return err
	}
	if c.Start, err = parseTokenTime(start, now); err != nil {
		return err
	}
	expiry, err := flags.GetString("expiry")
	if err != nil {
		return err
	}
	if c.Expiry, err = parseTokenTime(expiry, now); err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &c)
}

func policyGetMain(cmd *cobra.Command, args []string) error {
	env, err := getStorageEnv(cmd)
	if err != nil {
		return err
	}
	c := cmdlet.GetContainerPolicy{
		Container: args[0],
		Storage:   env.Storage,
		Runtime:   env.Runtime,
	}
	if len(args) > 1 {
		c.ID = args[1]
	}
	return executeCommand(cmd, env.Logger, &c)
}

func policyRemoveMain(cmd *cobra.Command, args []string) error {
	env, err := getStorageEnv(cmd)
	if err != nil {
		return err
	}
	force, passThru, err := getRemoveFlags(cmd)
	if err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &cmdlet.RemoveContainerPolicy{
		Container:    args[0],
		ID:           args[1],
		Force:        force,
		PassThru:     passThru,
		Storage:      env.Storage,
		Runtime:      env.Runtime,
		Confirmation: getConfirmation(cmd),
	})
}

func newBlobCmd() *cobra.Command {
	blobCmd := cobra.Command{
		Use:   cmdlet.BlobNoun,
		Short: "Manages blobs",
	}
	blobCmd.PersistentFlags().StringP("container", "c", "", "Container name")
	_ = blobCmd.MarkPersistentFlagRequired("container")
	uploadCmd := cobra.Command{
		Use:   "upload FILE",
		Short: "Uploads file as blob",
		Args:  cobra.ExactArgs(1),
		RunE:  blobUploadMain,
	}
	uploadCmd.Flags().String("blob", "", "Blob name, file name by default")
	uploadCmd.Flags().BoolP("force", "f", false, "Overwrite existing blob without confirmation")
	blobCmd.AddCommand(&uploadCmd)
	downloadCmd := cobra.Command{
		Use:   "download BLOB",
		Short: "Downloads blob to file",
		Args:  cobra.ExactArgs(1),
		RunE:  blobDownloadMain,
	}
	downloadCmd.Flags().String("destination", ".", "Destination file or directory")
	downloadCmd.Flags().BoolP("force", "f", false, "Overwrite existing file without confirmation")
	blobCmd.AddCommand(&downloadCmd)
	getCmd := cobra.Command{
		Use:   "get [BLOB]",
		Short: "Prints blob or list of blobs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  blobGetMain,
	}
	getCmd.Flags().String("prefix", "", "Blob name prefix")
	blobCmd.AddCommand(&getCmd)
	removeCmd := cobra.Command{
		Use:   "remove BLOB",
		Short: "Removes blob",
		Args:  cobra.ExactArgs(1),
		RunE:  blobRemoveMain,
	}
	addRemoveFlags(&removeCmd)
	blobCmd.AddCommand(&removeCmd)
	sasCmd := cobra.Command{
		Use:   cmdlet.SASTokenNoun + " BLOB",
		Short: "Prints shared access signature token for blob",
		Args:  cobra.ExactArgs(1),
		RunE:  blobSASMain,
	}
	addSASTokenFlags(&sasCmd)
	blobCmd.AddCommand(&sasCmd)
	return &blobCmd
}

func blobUploadMain(cmd *cobra.Command, args []string) error {
	env, err := getStorageEnv(cmd)
	if err != nil {
		return err
	}
	container, err := cmd.Flags().GetString("container")
	if err != nil {
		return err
	}
	blob, err := cmd.Flags().GetString("blob")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &cmdlet.UploadBlob{
		File:         args[0],
		Container:    container,
		Blob:         blob,
		Force:        force,
		Storage:      env.Storage,
		Runtime:      env.Runtime,
		Confirmation: getConfirmation(cmd),
	})
}

func blobDownloadMain(cmd *cobra.Command, args []string) error {
	env, err := getStorageEnv(cmd)
	if err != nil {
		return err
	}
	container, err := cmd.Flags().GetString("container")
	if err != nil {
		return err
	}
	destination, err := cmd.Flags().GetString("destination")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &cmdlet.DownloadBlob{
		Container:    container,
		Blob:         args[0],
		Destination:  destination,
		Force:        force,
		Storage:      env.Storage,
		Runtime:      env.Runtime,
		Confirmation: getConfirmation(cmd),
	})
}

func blobGetMain(cmd *cobra.Command, args []string) error {
	env, err := getStorageEnv(cmd)
	if err != nil {
		return err
	}
	container, err := cmd.Flags().GetString("container")
	if err != nil {
		return err
	}
	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return err
	}
	c := cmdlet.GetBlob{
		Container: container,
		Prefix:    prefix,
		Storage:   env.Storage,
		Runtime:   env.Runtime,
	}
	if len(args) > 0 {
		c.Blob = args[0]
	}
	return executeCommand(cmd, env.Logger, &c)
}

func blobRemoveMain(cmd *cobra.Command, args []string) error {
	env, err := getStorageEnv(cmd)
	if err != nil {
		return err
	}
	container, err := cmd.Flags().GetString("container")
	if err != nil {
		return err
	}
	force, passThru, err := getRemoveFlags(cmd)
	if err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &cmdlet.RemoveBlob{
		Container:    container,
		Blob:         args[0],
		Force:        force,
		PassThru:     passThru,
		Storage:      env.Storage,
		Runtime:      env.Runtime,
		Confirmation: getConfirmation(cmd),
	})
}

func blobSASMain(cmd *cobra.Command, args []string) error {
	env, err := getStorageEnv(cmd)
	if err != nil {
		return err
	}
	container, err := cmd.Flags().GetString("container")
	if err != nil {
		return err
	}
	token, err := getSASToken(cmd, env)
	if err != nil {
		return err
	}
	return executeCommand(cmd, env.Logger, &cmdlet.NewBlobSASToken{
		SASToken:  token,
		Container: container,
		Blob:      args[0],
	})
}
