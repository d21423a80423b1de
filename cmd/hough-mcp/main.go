package main

import (
	"fmt"
	"os"

	"github.com/ironsheep/hough-mcp/internal/config"
	"github.com/ironsheep/hough-mcp/internal/logging"
	"github.com/ironsheep/hough-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("hough-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("hough-mcp - MCP server for Hough transform shape detection")
			fmt.Println()
			fmt.Println("Usage: hough-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables (also read from ./.env):")
			fmt.Printf("  %s=info           trace, debug, info, warn or error\n", config.EnvLogLevel)
			fmt.Printf("  %s=path            Also write a rotated log file\n", config.EnvLogFile)
			fmt.Printf("  %s=0                Goroutines per detection (0 = all CPUs)\n", config.EnvWorkers)
			fmt.Printf("  %s=0         Reject larger images (0 = 65534)\n", config.EnvMaxImageSide)
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "hough-mcp: %v\n", err)
		os.Exit(2)
	}

	// Logs go to stderr (stdout is for MCP protocol)
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "hough-mcp: %v\n", err)
		os.Exit(2)
	}
	log.WithFields(logging.Fields{
		"version": Version,
		"built":   BuildTime,
		"commit":  GitCommit,
		"workers": cfg.Workers,
	}).Debug("Hough MCP server starting")

	srv := server.New(
		server.WithLogger(log),
		server.WithWorkers(cfg.Workers),
		server.WithMaxImageSide(cfg.MaxImageSide),
		server.WithVersion(Version),
	)
	if err := srv.Run(); err != nil {
		log.WithError(err).Fatal("Server error")
	}
}
