package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/udovin/cloudctl/internal/cmdlet"
	"github.com/udovin/cloudctl/internal/config"
	"github.com/udovin/cloudctl/internal/pkg/logs"
)

var testCtx, testCancel = context.WithCancel(context.Background())

func resolveFile(files ...string) (string, error) {
	for _, file := range files {
		if len(file) == 0 {
			continue
		}
		if _, err := os.Stat(file); err == nil {
			return file, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", os.ErrNotExist
}

// getConfig reads config with filename from '--config' flag.
func getConfig(cmd *cobra.Command) (config.Config, error) {
	flagFilename, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	envFilename := os.Getenv("CLOUDCTL_CONFIG")
	resolved, err := resolveFile(flagFilename, envFilename)
	if err != nil {
		return config.Config{}, fmt.Errorf("cannot find config file: %w", err)
	}
	return config.LoadFromFile(resolved)
}

func getLogger(cmd *cobra.Command, cfg config.Config) *logs.Logger {
	return logs.NewLogger(
		logs.WithOutput(cmd.ErrOrStderr()),
		logs.WithLevel(cfg.LogLevel.Level()),
	)
}

func getRuntime(cmd *cobra.Command) (*cmdlet.ConsoleRuntime, error) {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}
	format, err := cmdlet.ParseOutputFormat(output)
	if err != nil {
		return nil, err
	}
	return cmdlet.NewConsoleRuntime(cmd.OutOrStdout(), cmd.ErrOrStderr(), format), nil
}

func getConfirmation(cmd *cobra.Command) cmdlet.Confirmation {
	return cmdlet.NewPromptConfirmation(cmd.InOrStdin(), cmd.ErrOrStderr())
}

func getContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

type command interface {
	Execute(ctx context.Context) error
}

func executeCommand(cmd *cobra.Command, logger *logs.Logger, c command) error {
	logger.Debug(
		"Execute command",
		logs.Any("command", cmd.CommandPath()),
		logs.Any("type", fmt.Sprintf("%T", c)),
	)
	if err := c.Execute(getContext(cmd)); err != nil {
		logger.Debug("Command failed", logs.Any("command", cmd.CommandPath()), err)
		return err
	}
	return nil
}

func versionMain(cmd *cobra.Command, _ []string) {
	fmt.Fprintln(cmd.OutOrStdout(), "cloudctl version:", config.Version)
}

func newRootCmd() *cobra.Command {
	rootCmd := cobra.Command{
		Use:           "cloudctl",
		Short:         "Manages cloud clusters, storage and add-ons",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "cloudctl.json", "Path to config file")
	rootCmd.PersistentFlags().StringP(
		"output", "o", string(cmdlet.TableOutput), "Output format (json or table)",
	)
	rootCmd.AddCommand(newStorageCmd())
	rootCmd.AddCommand(newClusterCmd())
	rootCmd.AddCommand(newAddOnCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "emulator",
		RunE:  emulatorMain,
		Short: "Starts local management API emulator",
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Run:   versionMain,
		Short: "Prints information about version",
	})
	return &rootCmd
}

// main is a main entry point.
//
// Every command reads config from '--config' flag or CLOUDCTL_CONFIG
// environment variable. Commands that work with local project only
// ('settings', 'version') do not require config.
func main() {
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		cancel()
		os.Exit(1)
	}
}
