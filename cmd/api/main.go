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

	"libraryapi/internal/auth"
	"libraryapi/internal/author"
	"libraryapi/internal/availability"
	"libraryapi/internal/book"
	"libraryapi/internal/config"
	"libraryapi/internal/httpx"
	"libraryapi/internal/loan"
	"libraryapi/internal/platform/postgres"
	"libraryapi/internal/user"
)

const revocationPurgeInterval = 15 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := postgres.Open(ctx, cfg.DB.DSN, postgres.Options{MaxConns: cfg.DB.MaxConns})
	if err != nil {
		return err
	}
	defer dbPool.Close()
	logger.Info("database connection OK", slog.String("dsn", postgres.RedactDSN(cfg.DB.DSN)))

	timeout := cfg.DB.Timeout

	userService := user.NewService(user.NewPostgresRepo(dbPool, timeout), logger)
	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL,
		userService, auth.NewPostgresRepo(dbPool, timeout), logger)
	authorService := author.NewService(author.NewPostgresRepo(dbPool, timeout), logger)
	bookService := book.NewService(book.NewPostgresRepo(dbPool, timeout), logger,
		book.WithAuthorRequired(cfg.AuthorRequired()))
	loanService := loan.NewService(loan.NewPostgresRepo(dbPool, timeout), logger)
	engine := availability.NewEngine(dbPool, timeout)

	router := newRouter(handlers{
		books:        book.NewHTTPHandler(bookService),
		authors:      author.NewHTTPHandler(authorService),
		loans:        loan.NewHTTPHandler(loanService),
		users:        user.NewHTTPHandler(userService),
		auth:         auth.NewHTTPHandler(authService),
		availability: availability.NewHTTPHandler(engine),
	}, dbPool.Ping)

	proxies, err := httpx.ParseTrustedProxies(cfg.HTTP.TrustedProxies)
	if err != nil {
		return err
	}
	limiter := httpx.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst, proxies...)
	go limiter.Run(ctx)
	go authService.RunPurger(ctx, revocationPurgeInterval)

	handler := httpx.Chain(
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware(logger),
		httpx.RecoveryMiddleware,
		httpx.SecurityHeadersMiddleware(cfg.HTTP.EnableHSTS),
		httpx.CORSMiddleware(cfg.HTTP.CORSAllowedOrigins),
		httpx.RequestSizeLimitMiddleware(cfg.HTTP.MaxBodyBytes),
		limiter.Middleware,
		httpx.AuthMiddleware(cfg.Auth.JWTSecret, authService, userService),
	)(router)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", cfg.Server.Addr))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
