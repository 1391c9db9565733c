package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"church-finance-service/internal/api"
	"church-finance-service/internal/jobs"
	"church-finance-service/internal/reconciler"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation HTTP server",
	Long: `Serve starts the HTTP API: statement imports are accepted as uploads and
processed by a background worker pool, retries and listings run inline.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	queue, err := jobs.NewQueue(&app.config.Queue, reconciler.ImportJobHandler(app.service))
	if err != nil {
		return err
	}

	server, err := api.NewServer(&app.config.HTTP, app.service, queue)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		queue.Close()
		return err
	case sig := <-stop:
		app.logger.WithField("signal", sig.String()).Info("Shutting down")
	}

	if err := server.Shutdown(); err != nil {
		app.logger.WithError(err).Warn("HTTP shutdown failed")
	}

	// Let queued imports finish before the process exits.
	done := make(chan struct{})
	go func() {
		queue.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		app.logger.Warn("Import queue did not drain in time")
	}

	return nil
}
