package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/voicebatch/internal/httpapi"
	"github.com/book-expert/voicebatch/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve batch transcription over HTTP and NATS",
		Long: `Serve POST /transcribe on server.addr. When nats.url is set, also answer
batch requests on nats.batch_subject.

Without --config the configuration comes from the central configurator.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, global)
		},
	}
}

func runServe(ctx context.Context, global *globalOptions) error {
	rt, err := bootstrap(global, true)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	service, exec, err := rt.transcriptionStack(rt.cfg.Paths.AudioRoot, rt.transcriptionSettings())
	if err != nil {
		return err
	}
	defer exec.Release()

	gin.SetMode(gin.ReleaseMode)

	router, err := httpapi.NewRouter(httpapi.NewController(service, service.Pool(), service.Model(), rt.log))
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", rt.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", rt.cfg.Server.Addr, err)
	}

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 2)

	go func() {
		rt.log.System("voicebatch listening on %s (model %s)", listener.Addr(), service.Model())

		serveErr := server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server failed: %w", serveErr)
		}
	}()

	if rt.cfg.NATS.URL != "" {
		natsConnection, connectErr := nats.Connect(rt.cfg.NATS.URL, nats.Name("voicebatch"))
		if connectErr != nil {
			return fmt.Errorf("failed to connect to NATS at %s: %w", rt.cfg.NATS.URL, connectErr)
		}
		defer natsConnection.Close()

		natsWorker := worker.NewNatsWorker(natsConnection, rt.cfg.NATS.BatchSubject, service, 0, rt.log)

		go func() {
			runErr := natsWorker.Run(ctx)
			if runErr != nil {
				errChan <- runErr
			}
		}()
	}

	var runErr error

	select {
	case <-ctx.Done():
		rt.log.System("Shutting down")
	case runErr = <-errChan:
		rt.log.Error("Stopping after failure: %v", runErr)
	}

	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancelShutdown()

	shutdownErr := server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		return errors.Join(runErr, fmt.Errorf("failed to shut down http server: %w", shutdownErr))
	}

	return runErr
}
