package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rentalportal/internal/adapter/repository"
	domainrepo "rentalportal/internal/domain/repository"
	"rentalportal/internal/infrastructure/marketapi"
	"rentalportal/internal/infrastructure/ratelimit"
	"rentalportal/internal/usecase"
	"rentalportal/pkg/config"
	"rentalportal/pkg/logger"
)

var (
	version = "dev"

	portalName string
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "portalctl",
	Short: "Rental portal session and inbox tool",
	Long: `portalctl signs in to the rental marketplace as a customer, merchant or
admin and reads that identity's inbox. Identities are kept in a local pebble
store, so a login survives between runs like it survives a page reload.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&portalName, "portal", "p", "root", "rendering context: root, user, merchant or admin")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides PORTAL_CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// app is one CLI run: a single portal over the persisted identity store.
type app struct {
	store    domainrepo.KeyValueStore
	registry *usecase.PortalRegistry
	portal   *usecase.Portal
}

func (a *app) Close() {
	a.registry.Close()
	if err := a.store.Close(); err != nil {
		logger.Warn("Closing identity store: %v", err)
	}
	logger.Sync()
}

func openApp(ctx context.Context) (*app, error) {
	if configPath != "" {
		os.Setenv("PORTAL_CONFIG_FILE", configPath)
	}
	if _, set := os.LookupEnv("STORE_DRIVER"); !set {
		// a CLI run is short lived, an in-memory store would forget every login
		os.Setenv("STORE_DRIVER", "pebble")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	if err := logger.Init(level, cfg.Environment); err != nil {
		return nil, err
	}

	store, err := repository.NewKeyValueStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := marketapi.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, cfg.BackendRPS)
	registry := usecase.NewPortalRegistry(usecase.PortalDeps{
		Identities:     repository.NewKVIdentityRepository(store, cfg.StoreNamespace),
		RateLimiter:    ratelimit.NewRateLimiter(),
		MinTokenLength: cfg.MinTokenLength,
		PollInterval:   cfg.UnreadPollInterval,
		ReconcileDelay: cfg.UnreadReconcileDelay,
		Backend: func(session *usecase.SessionUseCase) usecase.Backend {
			return client.Bind(session, func(rejected string) {
				session.ClearInvalidToken(context.Background(), rejected)
			})
		},
	})

	portal, err := registry.Get(ctx, portalName)
	if err != nil {
		registry.Close()
		store.Close()
		return nil, err
	}

	return &app{store: store, registry: registry, portal: portal}, nil
}
