package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-logr/stdr"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	sessionkit "github.com/airvend/sessionkit"
	"github.com/airvend/sessionkit/httpapi"
	promexport "github.com/airvend/sessionkit/metrics/export/prometheus"
)

// envVerifier authenticates the single operator account configured via
// SESSIONKIT_USER and SESSIONKIT_PASSWORD. A production deployment
// plugs in its own directory here.
type envVerifier struct {
	username string
	password string
}

func (v envVerifier) Verify(_ context.Context, username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(v.password)) == 1
	if !userOK || !passOK {
		return "", errors.New("invalid credentials")
	}
	return "operator", nil
}

func main() {
	var (
		listenAddr = flag.String("listen", ":8080", "HTTP listen address")
		redisAddr  = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		verbosity  = flag.Int("v", 0, "log verbosity")
	)
	flag.Parse()

	_ = godotenv.Load()

	stdr.SetVerbosity(*verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("sessionkitd")

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		client  redis.UniversalClient
		cleanup func()
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		logger.Info("using embedded miniredis", "addr", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		logger.Info("using redis", "addr", addr)
	}
	defer cleanup()

	cfg := sessionkit.DefaultConfig()
	cfg.Audit.Enabled = true

	registry, err := sessionkit.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(logger).
		WithAuditSink(sessionkit.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build registry: %v\n", err)
		os.Exit(1)
	}
	defer registry.Close()

	verifier := envVerifier{
		username: envOr("SESSIONKIT_USER", "admin"),
		password: envOr("SESSIONKIT_PASSWORD", "admin"),
	}

	api, err := httpapi.NewServer(httpapi.Config{
		Registry:     registry,
		Verifier:     verifier,
		CookieSecure: os.Getenv("SESSIONKIT_COOKIE_SECURE") == "true",
		Logger:       logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build http server: %v\n", err)
		os.Exit(1)
	}

	root := chi.NewRouter()
	root.Mount("/", api.Routes())
	root.Method(http.MethodGet, "/metrics", promexport.Handler(registry))
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := registry.Ping(r.Context()); err != nil {
			http.Error(w, "store unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              *listenAddr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", *listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, "graceful shutdown failed")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
