// shell-parse-mcp is an MCP server exposing incremental shell-input parsing:
// it turns arbitrarily chunked input fragments into classified parse trees
// and a stream of newly executable statements.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/acolita/shell-parse-mcp/internal/config"
	"github.com/acolita/shell-parse-mcp/internal/logging"
	"github.com/acolita/shell-parse-mcp/internal/mcp"
)

// Version information - set at build time.
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  string
		showVersion bool
		debug       bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if showVersion {
		fmt.Printf("shell-parse-mcp version %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if debug {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.TruncateAttrs)

	slog.Info("starting shell-parse-mcp",
		slog.String("version", Version),
		slog.Int("max_buffer_size", cfg.Parser.MaxBufferSize),
	)

	server := mcp.NewServer(cfg)

	// Set up config hot-reload if a config file was provided
	var configWatcher *config.Watcher
	if configPath != "" {
		var watcherErr error
		configWatcher, watcherErr = config.NewWatcher(configPath, func(newCfg *config.Config) {
			if debug {
				newCfg.Logging.Level = "debug"
			}
			server.UpdateConfig(newCfg)
		})
		if watcherErr != nil {
			slog.Warn("config hot-reload disabled",
				slog.String("error", watcherErr.Error()),
			)
		} else {
			slog.Info("config hot-reload enabled",
				slog.String("path", configPath),
			)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("received shutdown signal")
		if configWatcher != nil {
			configWatcher.Close()
		}
		server.Shutdown()
		os.Exit(0)
	}()

	if err := server.Run(); err != nil {
		slog.Error("server error", slog.String("error", err.Error()))
		if configWatcher != nil {
			configWatcher.Close()
		}
		server.Shutdown()
		os.Exit(1)
	}
}
