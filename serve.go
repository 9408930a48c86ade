package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dmorales/aulalink/internal/authz"
	"github.com/dmorales/aulalink/internal/classroom"
	"github.com/dmorales/aulalink/internal/config"
	"github.com/dmorales/aulalink/internal/httpapi"
	"github.com/dmorales/aulalink/internal/roster"
	"github.com/dmorales/aulalink/internal/rostergraph"
	"github.com/dmorales/aulalink/internal/session"
	"github.com/dmorales/aulalink/internal/stats"
)

// Server timeouts. ReadHeaderTimeout guards against slowloris clients;
// shutdownTimeout bounds how long in-flight syncs may delay exit.
const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
	upstreamTimeout   = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}

			return runServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&flagListenAddr, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&flagDBPath, "db", "", "database path (overrides config)")

	return cmd
}

// resolveConfig loads .env if present, then applies the full override
// chain: defaults, config file, environment, CLI flags.
func resolveConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		ListenAddr: flagListenAddr,
		DBPath:     flagDBPath,
	}

	cfg, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

// runServer wires the full dependency graph and serves until the context
// is canceled or a termination signal arrives.
func runServer(ctx context.Context, cfg *config.Config) error {
	logger := buildLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := rostergraph.Open(cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	hashKey, err := cfg.Session.DecodedHashKey()
	if err != nil {
		return err
	}

	blockKey, err := cfg.Session.DecodedBlockKey()
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: upstreamTimeout}

	oauth := classroom.NewOAuthClient(cfg.Google.ClientID, cfg.Google.ClientSecret, httpClient, logger)
	codec := session.NewCodec(hashKey, blockKey, cfg.Session.SecureCookies)
	recorder := &httpapi.TokenRecorder{Store: store}
	sessions := session.NewManager(codec, oauth, recorder, logger)

	api := httpapi.New(httpapi.Options{
		Store:      store,
		Sessions:   sessions,
		OAuth:      oauth,
		Engine:     roster.NewEngine(store, logger),
		Resolver:   authz.NewResolver(store, logger),
		Stats:      stats.NewAggregator(store, logger),
		HTTPClient: httpClient,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.ListenAddr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}

		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return <-errCh
}
