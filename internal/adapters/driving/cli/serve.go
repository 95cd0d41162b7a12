package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/syncd/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and webhook gateway",
	Long: `Runs the task scheduler and, when configured, the webhook gateway
until interrupted. Configuration changes are picked up without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd, OpenOptions{})
	if err != nil {
		return err
	}
	if svc.Scheduler == nil {
		return errors.New("scheduler not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cmd, svc)
}

// serve runs every long-lived component until ctx is cancelled or one of
// them fails; a failure stops the others.
func serve(ctx context.Context, cmd *cobra.Command, svc *Services) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, 3)
	running := 0
	start := func(name string, fn func(context.Context) error) {
		running++
		go func() {
			results <- result{name: name, err: fn(ctx)}
		}()
	}

	start("scheduler", svc.Scheduler.Start)
	if svc.Gateway != nil {
		cmd.Printf("Webhook gateway listening on %s\n", svc.ListenAddr)
		start("gateway", func(ctx context.Context) error {
			return svc.Gateway.Serve(ctx, svc.ListenAddr)
		})
	} else {
		cmd.Println("No webhook gateway configured; relying on polling.")
	}
	if svc.Watch != nil {
		start("config watcher", svc.Watch)
	}

	var firstErr error
	for ; running > 0; running-- {
		r := <-results
		if r.err != nil && !errors.Is(r.err, context.Canceled) && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", r.name, r.err)
			logger.Error("%v", firstErr)
		}
		cancel()
	}
	if err := svc.Scheduler.Stop(); err != nil {
		logger.Warn("stopping scheduler: %v", err)
	}
	cmd.Println("Stopped.")
	return firstErr
}
