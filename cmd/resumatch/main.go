// Package main is the resumatch CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/resumatch/internal/config"
	"github.com/hyperjump/resumatch/internal/monitor"
	"github.com/hyperjump/resumatch/internal/server"
	"github.com/hyperjump/resumatch/internal/watcher"
	"github.com/hyperjump/resumatch/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/resumatch/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if it exists. A .env file next to the loaded config is
// read first so Adzuna credentials can live outside the YAML.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadDotEnv sets variables from path without overriding the process environment.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "match":
		runMatch()
	case "detect":
		runDetect()
	case "resumes":
		runResumes()
	case "rules":
		runRules()
	case "watchlist":
		runWatchlist()
	case "monitor-once":
		runMonitorOnce()
	case "version", "--version", "-v":
		fmt.Printf("resumatch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	noMonitor := fs.Bool("no-monitor", false, "do not run the monitoring scheduler")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("source", cfg.Source.Kind),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var watch *watcher.Watcher
	if cfg.Watch.Enabled && components.FileSource != nil {
		watch = watcher.NewWatcher(
			[]string{components.FileSource.Path()},
			func(path string) {
				logger.Info("posting table changed, dropping cached queries", zap.String("path", path))
				components.Source.Purge()
			},
			watcher.WithLogger(logger),
		)
		if err := watch.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	opts := []server.Option{server.WithPostingCache(components.Source)}
	var sched *monitor.Scheduler
	if cfg.Monitor.EnabledOrDefault() && !*noMonitor {
		sched = components.NewScheduler(logger)
		if err := sched.Start(ctx); err != nil {
			logger.Fatal("Failed to start monitor", zap.Error(err))
		}
		opts = append(opts, server.WithMonitor(sched))
	}

	srv := server.NewServer(components.Matcher, components.Storage, components.Extractor, cfg, logger, opts...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Warn("monitor stop", zap.Error(err))
		}
	}
	if watch != nil {
		watch.Stop()
	}
	cancel()
}

// flagsFirst moves any flags (and their values) that appear after positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops
// at the first non-flag argument, so "resumatch match cv.pdf -top 5" would
// otherwise leave -top unparsed.
func flagsFirst(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args with spaces so multi-word queries work the same
// with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printUsage() {
	fmt.Println(`resumatch - rank job postings against a resume

Usage:
  resumatch server [flags]                        Start the HTTP server and monitoring scheduler
  resumatch match [flags] <resume> [query...]      Rank postings for a resume (no query = auto-detect)
  resumatch detect [flags] <resume>                Show the resume's most salient keyphrases
  resumatch resumes <add|list|remove> [flags]      Manage stored resumes
  resumatch rules <add|list|remove> [flags]        Manage monitoring rules
  resumatch watchlist [flags]                      Show postings recorded by monitoring
  resumatch monitor-once [flags]                   Run one monitoring pass over every rule
  resumatch version                                Show version
  resumatch help                                   Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/resumatch/config.yaml,
                     or ./config.yaml when present)
  --owner string     Owner ID for resumes, rules and watchlist (default: $USER)

Server Flags:
  --debug            Enable debug logging
  --no-monitor       Do not run the monitoring scheduler

Match Flags:
  --location string  Keep postings whose location contains this text
  --min-score float  Drop postings scoring below this (0-100)
  --top int          Number of ranked postings to keep (default from config)
  --output string    text, compact, json or csv (default: text)

Examples:
  resumatch server
  resumatch match cv.pdf python developer
  resumatch match --location lahore --min-score 40 cv.pdf "data engineer"
  resumatch match --output csv cv.docx > results.csv
  resumatch detect -n 10 cv.pdf
  resumatch resumes add cv.pdf
  resumatch rules add --resume <resume-id> golang developer
  resumatch watchlist --page 2`)
}
