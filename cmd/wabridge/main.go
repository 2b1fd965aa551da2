// ABOUTME: Entry point for the wabridge daemon
// ABOUTME: Wires config, session store, connection manager, relay and HTTP facade

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/wabridge/internal/config"
	"github.com/2389/wabridge/internal/httpapi"
	"github.com/2389/wabridge/internal/logbuf"
	"github.com/2389/wabridge/internal/manager"
	"github.com/2389/wabridge/internal/relay"
	"github.com/2389/wabridge/internal/session"
	"github.com/2389/wabridge/internal/wire"
)

const banner = `
    ╭──────────────────────────────╮
    │                              │
    │   ╻ ╻┏━┓┏┓ ┏━┓╻┏┳┓┏━╸┏━╸    │
    │   ┃╻┃┣━┫┣┻┓┣┳┛┃ ┃┃┃╺┓┣╸     │
    │   ┗┻┛╹ ╹┗━┛╹┗╸╹╺┻┛┗━┛┗━╸    │
    │                              │
    │       whatsapp bridge        │
    │                              │
    ╰──────────────────────────────╯
`

// getConfigPath returns the path to the bridge config file.
// Priority: WABRIDGE_CONFIG env var > XDG_CONFIG_HOME/wabridge/config.yaml > ~/.config/wabridge/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("WABRIDGE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "wabridge", "config.yaml")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	configPath := getConfigPath()

	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Print startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Engine:   %s\n", cfg.Wire.Endpoint)
	green.Print("    ▶ ")
	fmt.Printf("Store:    %s\n", cfg.Store.Backend)
	green.Print("    ▶ ")
	fmt.Printf("Listen:   %s\n", cfg.Server.HTTPAddr)
	fmt.Println()

	// Open the session store
	store, err := newStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer store.Close()

	logs := logbuf.New(cfg.Logs.Capacity)
	dialer := wire.NewSocketDialer(cfg.Wire.Endpoint, logger)

	mgr := manager.New(manager.Config{
		VersionURL:        cfg.Wire.VersionURL,
		SettleDelay:       cfg.Connect.SettleDelay,
		ReconnectMinDelay: cfg.Connect.ReconnectMinDelay,
		ReconnectMaxDelay: cfg.Connect.ReconnectMaxDelay,
		LoggedOutDelay:    cfg.Connect.LoggedOutDelay,
		ResetDelay:        cfg.Connect.ResetDelay,
		RetryDelay:        cfg.Connect.RetryDelay,
		MaxRetries:        cfg.Connect.MaxRetries,
	}, store, dialer, logs, logger)

	rly := relay.New(relay.Config{
		ReplyPrefix:   cfg.Relay.ReplyPrefix,
		SeenCacheSize: cfg.Relay.SeenCacheSize,
	}, mgr, logs, logger)
	mgr.OnMessage(rly.HandleInbound)

	srv := httpapi.New(httpapi.Config{
		Addr:      cfg.Server.HTTPAddr,
		JWTSecret: cfg.Auth.JWTSecret,
	}, mgr, rly, logs, logger)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	logger.Info("starting wabridge")

	errCh := make(chan error, 2)
	go func() { errCh <- mgr.Run(ctx) }()
	go func() { errCh <- srv.Run(ctx) }()

	// Wait for both halves; the first failure stops the other.
	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			stop()
		}
	}
	return firstErr
}

// newStore opens the configured session store backend.
func newStore(cfg config.StoreConfig) (session.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return session.NewSQLiteStore(cfg.Database)
	default:
		return session.NewFileStore(cfg.Path)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var logLevel slog.Level
	switch cfg.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
