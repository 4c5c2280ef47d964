package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/plc-bridge/backend/internal/api"
	"github.com/plc-bridge/backend/internal/bridge"
	"github.com/plc-bridge/backend/internal/config"
	"github.com/plc-bridge/backend/internal/events"
	"github.com/plc-bridge/backend/internal/fieldbus"
	"github.com/plc-bridge/backend/internal/registry"
	"github.com/plc-bridge/backend/internal/store"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// serveOptions holds the command-line overrides.
type serveOptions struct {
	ConfigPath string
	Port       int
	PLCHost    string
	PLCPort    int
}

func newRootCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "PLC signal bridge",
		Long:  "Synchronizes PLC signal values with business records and publishes changes to subscribers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "bridge.config.xml", "path to XML configuration file")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "HTTP port (overrides config)")
	cmd.Flags().StringVar(&opts.PLCHost, "plc-host", "", "PLC host (overrides config)")
	cmd.Flags().IntVar(&opts.PLCPort, "plc-port", 0, "PLC port (overrides config)")

	return cmd
}

func runServe(opts *serveOptions) error {
	// Load XML configuration
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.PLCHost != "" {
		cfg.FieldBus.Host = opts.PLCHost
	}
	if opts.PLCPort != 0 {
		cfg.FieldBus.Port = opts.PLCPort
	}

	// Open the record store
	var recordStore store.Store
	switch cfg.Store.Backend {
	case "file":
		recordStore, err = store.NewFileStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open record store: %w", err)
		}
	case "sqlite", "":
		recordStore, err = store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open record store: %w", err)
		}
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	defer recordStore.Close()

	// Load the initial address map. Startup without signal metadata
	// is a hard error.
	addressMap := registry.New(recordStore, cfg.FieldBus.ConnectionName)
	snap, err := addressMap.Load()
	if err != nil {
		return fmt.Errorf("failed to load address map: %w", err)
	}

	// The field-bus endpoint comes from the connection record unless
	// the config pins it explicitly.
	host, port := cfg.FieldBus.Host, cfg.FieldBus.Port
	if cfg.FieldBus.UseStoreEndpoint && snap.Connection.Host != "" {
		host = snap.Connection.Host
		if snap.Connection.Port != 0 {
			port = snap.Connection.Port
		}
	}
	conn := fieldbus.New(host, port, byte(cfg.FieldBus.UnitID), time.Duration(cfg.FieldBus.TimeoutMs)*time.Millisecond)

	// Event distribution
	hub := events.NewHub(cfg.Events.SubscriberBufferSize)
	history := events.NewHistory()
	recorder := &events.Recorder{Hub: hub, History: history}

	// Engine
	eng := bridge.New(addressMap, conn, recorder, bridge.Options{
		PollInterval:   time.Duration(cfg.Polling.PollIntervalMs) * time.Millisecond,
		StatusInterval: time.Duration(cfg.Polling.StatusIntervalMs) * time.Millisecond,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Run(ctx)
	}()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Events.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				strings.HasSuffix(path, "/stream") ||
				path == "/api/health" || path == "/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().Header.Get("Accept") == "text/event-stream" ||
				strings.HasSuffix(c.Request().URL.Path, "/stream")
		},
	}))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	handlers := api.NewHandlers(&api.Dependencies{
		Bridge:  eng,
		Hub:     hub,
		History: history,
		Version: Version,
	})
	api.RegisterRoutes(e, handlers)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Print startup banner
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           PLC Signal Bridge                               ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:     %-45s║\n", opts.ConfigPath)
	fmt.Printf("║  Listen:     http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  PLC:        %-45s║\n", fmt.Sprintf("%s:%d (unit %d)", host, port, cfg.FieldBus.UnitID))
	fmt.Printf("║  Signals:    %-45d║\n", snap.Count())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	// Shut the HTTP server down when the signal context fires, then
	// wait for the engine to stop.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.Shutdown(shutdownCtx)
	}()

	if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
		stop()
		<-engineDone
		return err
	}
	<-engineDone
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
