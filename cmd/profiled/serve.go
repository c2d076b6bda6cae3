package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/serving-profiler/internal/profiled"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/logger"
)

// ServeOptions holds the flags of the serve command.
type ServeOptions struct {
	GRPCAddr        string
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search session API over gRPC and HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.GRPCAddr, "grpc-addr", ":50051", "gRPC listen address")
	cmd.Flags().StringVar(&opts.HTTPAddr, "http-addr", ":8080", "HTTP listen address")
	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	metrics := profiled.NewMetrics()
	store := profiled.NewSessionStore(metrics)

	// TODO: Configure TLS for the gRPC listener
	// before using this service in a production environment.
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(metrics.UnaryServerInterceptor()))
	profiled.RegisterSearchServiceServer(grpcServer, profiled.NewSearchGRPCServer(store))

	grpcLis, err := net.Listen("tcp", opts.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen for gRPC", "addr", opts.GRPCAddr, "error", err)
		return err
	}

	httpSrv := &http.Server{
		Addr:              opts.HTTPAddr,
		Handler:           profiled.NewHTTPServer(store, metrics).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gRPC server listening", "addr", opts.GRPCAddr)
		return grpcServer.Serve(grpcLis)
	})

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", opts.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Error("server error", "error", err)
		return err
	}
	logger.Info("servers stopped")
	return nil
}
