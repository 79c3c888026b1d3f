package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"postboard.dev/internal/account"
	"postboard.dev/internal/auth"
	"postboard.dev/internal/board"
	"postboard.dev/internal/config"
	"postboard.dev/internal/httpapi"
	"postboard.dev/internal/migrate"
	"postboard.dev/internal/obs"
	"postboard.dev/internal/profile"
	"postboard.dev/internal/session"
	"postboard.dev/internal/store/memory"
	"postboard.dev/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

type stores struct {
	accounts account.Store
	profiles profile.Store
	board    board.Store
	sessions session.Store
	db       *sql.DB
}

func main() {
	if err := run(); err != nil {
		obs.Logger().Error("postboard-api exited", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	restoreLog := obs.SetOutput(os.Stdout, obs.ParseLevel(cfg.LogLevel))
	defer restoreLog()

	obs.Init()
	obs.InitBuildInfo(version, commit, string(cfg.Mode()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.SetupTracing(ctx, "postboard-api", version, cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	var signer *auth.TokenSigner
	accountOpts := []account.Option{account.WithPasswordCost(cfg.PasswordCost)}
	switch cfg.Mode() {
	case auth.ModeToken:
		signer, err = auth.NewTokenSigner(cfg.TokenConfig())
		if err != nil {
			return fmt.Errorf("token signer: %w", err)
		}
		accountOpts = append(accountOpts, account.WithTokens(signer))
	case auth.ModeSession:
		accountOpts = append(accountOpts, account.WithSessions(st.sessions, cfg.SessionTTL))
	}

	resolver, err := auth.NewResolver(cfg.Mode(), signer, st.sessions, st.accounts)
	if err != nil {
		return fmt.Errorf("resolver: %w", err)
	}
	accounts, err := account.NewService(st.accounts, cfg.Mode(), accountOpts...)
	if err != nil {
		return fmt.Errorf("accounts: %w", err)
	}

	probe := httpapi.ReadyProbe{DB: st.db}
	api := httpapi.New(httpapi.Deps{
		Resolver:     resolver,
		Accounts:     accounts,
		Profiles:     profile.NewEngine(st.profiles, profile.WithTimeout(cfg.MutationTimeout)),
		Board:        board.NewService(st.board),
		Ready:        probe,
		Version:      version,
		CookieSecure: cfg.CookieSecure,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcServer := grpc.NewServer()
	health := httpapi.NewGRPCHealth(probe)
	health.Register(grpcServer)
	go health.Watch(ctx, 5*time.Second)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listen: %w", err)
		}
	}()

	obs.Logger().Info("postboard-api started",
		"version", version,
		"http_addr", cfg.HTTPAddr,
		"grpc_addr", cfg.GRPCAddr,
		"auth_mode", string(cfg.Mode()),
		"storage", storageKind(st.db),
	)

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	obs.Logger().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.GracefulStop()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		err = errors.Join(err, fmt.Errorf("http shutdown: %w", shutdownErr))
	}
	obs.Logger().Info("stopped")
	return err
}

// openStores picks PostgreSQL when a DSN is set and the in-memory store
// otherwise.
func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	if cfg.DSN == "" {
		mem := memory.New()
		sessions := session.NewMemory()
		go sessions.Run(ctx, time.Minute)
		return stores{accounts: mem, profiles: mem, board: mem, sessions: sessions}, nil
	}

	store, err := pg.Open(cfg.DSN)
	if err != nil {
		return stores{}, fmt.Errorf("open db: %w", err)
	}
	if cfg.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := migrate.NewManager(store.DB()).Up(migrateCtx); err != nil {
			_ = store.Close()
			return stores{}, fmt.Errorf("migrate up: %w", err)
		}
	}
	sessions := pg.NewSessions(store.DB())
	go purgeSessions(ctx, sessions, 10*time.Minute)
	return stores{accounts: store, profiles: store, board: store, sessions: sessions, db: store.DB()}, nil
}

func purgeSessions(ctx context.Context, s *pg.Sessions, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Purge(ctx)
			if err != nil {
				obs.Logger().Warn("session purge failed", "error", err.Error())
				continue
			}
			if n > 0 {
				obs.Logger().Debug("expired sessions purged", "count", n)
			}
		}
	}
}

func storageKind(db *sql.DB) string {
	if db == nil {
		return "memory"
	}
	return "postgres"
}
