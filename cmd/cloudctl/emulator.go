package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/udovin/cloudctl/internal/emulator"
	"github.com/udovin/cloudctl/internal/pkg/logs"
)

func isServerError(err error) bool {
	return err != nil && err != http.ErrServerClosed
}

// emulatorMain starts local management API emulator.
//
// Simply speaking this function does following things:
//  1. Opens emulator database and creates tables.
//  2. Setup Echo server instance.
//  3. Register emulator View to Echo server.
func emulatorMain(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Emulator == nil {
		return fmt.Errorf("section 'emulator' should be configured")
	}
	logger := getLogger(cmd, cfg)
	db, err := cfg.Emulator.DB.Create()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := emulator.ApplySchema(getContext(cmd), db); err != nil {
		return err
	}
	token, err := cfg.Emulator.Token.Secret()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(
		testCtx, os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()
	srv := emulator.NewServer(logger)
	emulator.NewView(db, token).Register(srv.Group(""))
	errs := make(chan error, 1)
	go func() {
		defer cancel()
		if err := srv.Start(cfg.Emulator.Address()); isServerError(err) {
			errs <- err
		}
	}()
	logger.Info("Emulator started", logs.Any("address", cfg.Emulator.Address()))
	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(), time.Minute,
	)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err)
	}
	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}
