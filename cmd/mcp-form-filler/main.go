package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-form-filler/internal/config"
	"github.com/a3tai/mcp-form-filler/internal/httpapi"
	"github.com/a3tai/mcp-form-filler/internal/locator"
	"github.com/a3tai/mcp-form-filler/internal/mcp"
	"github.com/a3tai/mcp-form-filler/internal/pdf"
	"github.com/a3tai/mcp-form-filler/internal/processor"
	"github.com/a3tai/mcp-form-filler/internal/workflow"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// runner is a surface that serves until its context is done.
type runner interface {
	Run(ctx context.Context) error
}

// setupLogging configures logging based on the server mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
	} else {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

// newSession wires the tab session from the configuration.
func newSession(ctx context.Context, cfg *config.Config) (*workflow.Session, error) {
	endpoints, err := config.NewEndpointStore(cfg.EndpointFile, cfg.APIEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to open endpoint store: %w", err)
	}

	deps := workflow.Deps{
		Locator: locator.New(locator.Options{
			ProbeTimeout:   cfg.ProbeTimeout,
			RequestTimeout: cfg.RequestTimeout,
			MaxFileSize:    cfg.MaxFileSize,
		}),
		Client:    processor.NewClient(cfg.RequestTimeout),
		Validator: pdf.NewValidator(cfg.MaxFileSize),
		Endpoints: endpoints,
	}
	opts := workflow.Options{
		FormID:        cfg.FormID,
		RequiredClass: cfg.RequiredClass,
		PollInterval:  cfg.PollInterval,
		InitialDelay:  cfg.InitialDelay,
		Monitor:       true,
	}
	return workflow.New(ctx, deps, opts), nil
}

// newRunner builds the surface selected by the mode.
func newRunner(cfg *config.Config, session *workflow.Session) (runner, error) {
	if cfg.IsServerMode() {
		s, err := httpapi.NewServer(cfg, session)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := mcp.NewServer(cfg, session)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server runner) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()

		if err := <-serverErrCh; err != nil {
			log.Printf("Server shutdown with error: %v", err)
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}

	log.Println("Server stopped successfully")
}

// runStdioMode handles stdio mode execution. The parent process controls our
// lifecycle, so we exit once stdin closes.
func runStdioMode(ctx context.Context, server runner) {
	if err := server.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}
}

// versionRequested reports whether args ask for the version, checked before
// flag parsing so it works alongside otherwise invalid flags.
func versionRequested(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

func main() {
	if versionRequested(os.Args[1:]) {
		printVersion()
		return
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := newSession(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer session.Close()

	server, err := newRunner(cfg, session)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server)
	} else {
		runStdioMode(ctx, server)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MCP Form Filler\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
