// Package cli provides the syncd command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/core/ports/driving"
	"github.com/custodia-labs/syncd/internal/logger"
)

// version is set at build time.
var version = "dev"

// Gateway serves inbound provider notifications.
type Gateway interface {
	Serve(ctx context.Context, addr string) error
}

// ConnectionEditor persists connection changes.
type ConnectionEditor interface {
	PutConnection(conn domain.Connection) error
	RemoveConnection(id string) error
}

// Services bundles the ports the commands drive.
type Services struct {
	Engine      driving.SyncEngine
	Scheduler   driving.Scheduler
	Connections driven.ConnectionStore
	Activities  driven.ActivityStore
	Connectors  driven.ConnectorFactory

	// Editor is nil when connections are read-only.
	Editor ConnectionEditor

	// Gateway is nil when no gateway is configured.
	Gateway    Gateway
	ListenAddr string

	// Watch reloads configuration until ctx is cancelled. Optional.
	Watch func(ctx context.Context) error

	// Close releases storage. Optional.
	Close func() error
}

// OpenOptions selects how services are built.
type OpenOptions struct {
	ConfigPath string

	// Ephemeral keeps all state in memory for a one-shot run.
	Ephemeral bool
}

// Opener builds Services.
type Opener func(ctx context.Context, opts OpenOptions) (*Services, error)

var (
	opener   Opener
	services *Services

	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "syncd",
	Short: "Incremental sync engine for SaaS connectors",
	Long: `syncd keeps activities from GitHub, Google Calendar and Google Drive
in sync with a local store. Resources are synced in batches, kept fresh
through webhooks where the provider supports them and polling otherwise.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.syncd/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetOpener sets how commands build their services.
func SetOpener(o Opener) {
	opener = o
}

// Execute runs the root command and releases services afterwards.
func Execute() error {
	defer closeServices()
	return rootCmd.Execute()
}

// loadServices returns the configured services, opening them on first use.
func loadServices(cmd *cobra.Command, opts OpenOptions) (*Services, error) {
	if services != nil {
		return services, nil
	}
	if opener == nil {
		return nil, errors.New("services not configured")
	}
	opts.ConfigPath = configPath
	svc, err := opener(cmd.Context(), opts)
	if err != nil {
		return nil, fmt.Errorf("opening services: %w", err)
	}
	services = svc
	return svc, nil
}

func closeServices() {
	if services == nil || services.Close == nil {
		return
	}
	if err := services.Close(); err != nil {
		logger.Warn("closing services: %v", err)
	}
	services = nil
}
