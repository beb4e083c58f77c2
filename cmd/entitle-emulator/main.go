// Command entitle-emulator serves a local entitlement service for development
// and integration tests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/infrastructure/emulator"
	"github.com/turtacn/entitle/internal/infrastructure/monitoring"
	entitlehttp "github.com/turtacn/entitle/internal/interfaces/http"
	"github.com/turtacn/entitle/internal/interfaces/http/handlers"
	"github.com/turtacn/entitle/pkg/logger"
)

func main() {
	var configPath string
	var printKey bool

	rootCmd := &cobra.Command{
		Use:          "entitle-emulator",
		Short:        "Serve a local entitlement service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, configPath, printKey)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the configuration file")
	rootCmd.Flags().BoolVar(&printKey, "print-public-key", false, "print the decision verification key as PEM and exit")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(cmd *cobra.Command, configPath string, printKey bool) error {
	// Logger for startup
	startupLogger, _ := monitoring.NewZapLogger(&config.LogConfig{Level: "info", Format: "console"})

	cfg, err := config.Load(configPath, startupLogger)
	if err != nil {
		return err
	}

	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		return err
	}

	signer, err := emulator.NewSigner(cfg.Emulator.SigningKeyPath)
	if err != nil {
		return err
	}
	publicKey, err := signer.PublicKeyPEM()
	if err != nil {
		return err
	}
	if printKey {
		_, err := cmd.OutOrStdout().Write(publicKey)
		return err
	}
	if cfg.Emulator.SigningKeyPath == "" {
		appLogger.Warn(context.Background(), "No signing key configured, decisions are signed with an ephemeral key")
		fmt.Fprintf(cmd.ErrOrStderr(), "Decision verification key:\n%s", publicKey)
	}

	// Initialize tracing
	tracing, err := monitoring.NewTracingManager(cfg.Tracing, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(ctx)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gin.SetMode(gin.ReleaseMode)
	ledger := emulator.NewLedger(cfg.Emulator.GrantTTL)
	router := entitlehttp.NewRouter(
		cfg.Emulator,
		appLogger,
		handlers.NewEntitlementHandler(emulator.Policy(cfg.Emulator.Grants), ledger, signer, appLogger),
		handlers.NewHealthHandler(ledger),
		tracing.Tracer(),
		registry,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Start()
	}()
	appLogger.Info(context.Background(), "Emulator ready",
		logger.String("address", cfg.Emulator.ListenAddress),
		logger.Int("policy_entries", len(cfg.Emulator.Grants)))

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := router.Stop(ctx); err != nil {
		appLogger.Error(ctx, "Emulator forced to shutdown", err)
		return err
	}
	return <-errCh
}
