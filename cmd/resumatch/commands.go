package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hyperjump/resumatch/internal/cli"
	"github.com/hyperjump/resumatch/internal/extract"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/storage"
	"github.com/hyperjump/resumatch/pkg/utils"
	"go.uber.org/zap"
)

// defaultOwner is the owner ID used by CLI commands when --owner is not given.
func defaultOwner() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

// setup loads config and builds components for a one-shot command.
func setup(configPath string, debug bool) (*Components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewCLILogger(cfg.Debug || debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	return components, logger
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func readResume(c *Components, path string) string {
	if !extract.Supported(path) {
		fail("Unsupported resume type %q; use .pdf, .docx, .txt or .md", filepath.Ext(path))
	}
	text, err := c.Extractor.Extract(path)
	if err != nil {
		fail("Failed to read resume: %v", err)
	}
	return text
}

func runMatch() {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	location := fs.String("location", "", "keep postings whose location contains this text")
	minScore := fs.Float64("min-score", 0, "drop postings scoring below this (0-100)")
	top := fs.Int("top", 0, "number of ranked postings to keep (0 = config default)")
	output := fs.String("output", "text", "output format: text, compact, json or csv")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	if fs.NArg() < 1 {
		fail("Usage: resumatch match [flags] <resume> [query...]")
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fail("%v", err)
	}

	c, logger := setup(*configPath, *debug)
	defer c.Close()
	defer logger.Sync()

	req := models.RankRequest{
		ResumeText: readResume(c, fs.Arg(0)),
		Query:      joinArgs(fs.Args()[1:]),
		Location:   *location,
		MinScore:   *minScore,
		TopN:       *top,
	}
	ctx := context.Background()
	var rs *models.ResultSet
	if req.Query == "" {
		rs, err = c.Matcher.RankAuto(ctx, req)
	} else {
		rs, err = c.Matcher.RankForResume(ctx, req)
	}
	if err != nil {
		fail("Match failed: %v", err)
	}
	if err := cli.WriteMatchResults(os.Stdout, rs, format); err != nil {
		fail("Failed to write results: %v", err)
	}
}

func runDetect() {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	count := fs.Int("n", 1, "number of keyphrases to show")
	_ = fs.Parse(flagsFirst(os.Args[2:]))
	if fs.NArg() != 1 {
		fail("Usage: resumatch detect [-n count] <resume>")
	}

	c, logger := setup(*configPath, false)
	defer c.Close()
	defer logger.Sync()

	kws, err := c.Keywords.Extract(context.Background(), readResume(c, fs.Arg(0)), *count)
	if err != nil {
		fail("Detection failed: %v", err)
	}
	if len(kws) == 0 {
		fmt.Println("No keyphrases found.")
		return
	}
	for _, kw := range kws {
		fmt.Printf("%.4f  %s\n", kw.Score, kw.Phrase)
	}
}

func runResumes() {
	if len(os.Args) < 3 {
		fail("Usage: resumatch resumes <add|list|remove> [flags]")
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("resumes "+sub, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	owner := fs.String("owner", defaultOwner(), "owner ID")
	_ = fs.Parse(flagsFirst(os.Args[3:]))

	c, logger := setup(*configPath, false)
	defer c.Close()
	defer logger.Sync()
	ctx := context.Background()

	switch sub {
	case "add":
		if fs.NArg() != 1 {
			fail("Usage: resumatch resumes add [--owner id] <file>")
		}
		path := fs.Arg(0)
		readResume(c, path)
		f, err := os.Open(path)
		if err != nil {
			fail("Failed to open resume: %v", err)
		}
		defer f.Close()
		dst, err := storage.SaveUpload(c.Config.Storage.UploadDir, filepath.Base(path), f)
		if err != nil {
			fail("Failed to store resume: %v", err)
		}
		res := &models.Resume{OwnerID: *owner, Filename: filepath.Base(path), Path: dst}
		if err := c.Storage.CreateResume(ctx, res); err != nil {
			_ = os.Remove(dst)
			fail("Failed to save resume: %v", err)
		}
		fmt.Printf("Resume stored: %s\n", res.ID)
	case "list":
		list, err := c.Storage.ListResumes(ctx, *owner)
		if err != nil {
			fail("Failed to list resumes: %v", err)
		}
		if err := cli.WriteResumes(os.Stdout, list); err != nil {
			fail("%v", err)
		}
	case "remove":
		if fs.NArg() != 1 {
			fail("Usage: resumatch resumes remove [--owner id] <id>")
		}
		res, err := c.Storage.GetResume(ctx, fs.Arg(0))
		if err == nil && res.OwnerID == *owner {
			err = c.Storage.DeleteResume(ctx, *owner, res.ID)
		} else if err == nil {
			err = fmt.Errorf("resume %s: %w", res.ID, models.ErrNotFound)
		}
		if err != nil {
			fail("Failed to remove resume: %v", err)
		}
		_ = os.Remove(res.Path)
		fmt.Printf("Resume removed: %s\n", res.ID)
	default:
		fail("Unknown resumes command: %s", sub)
	}
}

func runRules() {
	if len(os.Args) < 3 {
		fail("Usage: resumatch rules <add|list|remove> [flags]")
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("rules "+sub, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	owner := fs.String("owner", defaultOwner(), "owner ID")
	resumeID := fs.String("resume", "", "resume ID the rule ranks with (rules add)")
	_ = fs.Parse(flagsFirst(os.Args[3:]))

	c, logger := setup(*configPath, false)
	defer c.Close()
	defer logger.Sync()
	ctx := context.Background()

	switch sub {
	case "add":
		query := joinArgs(fs.Args())
		if *resumeID == "" || query == "" {
			fail("Usage: resumatch rules add --resume <id> [--owner id] <query...>")
		}
		res, err := c.Storage.GetResume(ctx, *resumeID)
		if err != nil || res.OwnerID != *owner {
			fail("Resume %s not found for owner %s", *resumeID, *owner)
		}
		rule := &models.MonitoringRule{OwnerID: *owner, ResumeID: *resumeID, Query: query}
		if err := c.Storage.CreateRule(ctx, rule); err != nil {
			fail("Failed to add rule: %v", err)
		}
		fmt.Printf("Rule added: %s (%q)\n", rule.ID, rule.Query)
	case "list":
		rules, err := c.Storage.ListRules(ctx, *owner)
		if err != nil {
			fail("Failed to list rules: %v", err)
		}
		if err := cli.WriteRules(os.Stdout, rules); err != nil {
			fail("%v", err)
		}
	case "remove":
		if fs.NArg() != 1 {
			fail("Usage: resumatch rules remove [--owner id] <id>")
		}
		if err := c.Storage.DeleteRule(ctx, *owner, fs.Arg(0)); err != nil {
			fail("Failed to remove rule: %v", err)
		}
		fmt.Printf("Rule removed: %s\n", fs.Arg(0))
	default:
		fail("Unknown rules command: %s", sub)
	}
}

func runWatchlist() {
	fs := flag.NewFlagSet("watchlist", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	owner := fs.String("owner", defaultOwner(), "owner ID")
	page := fs.Int("page", 1, "page number (10 matches per page)")
	_ = fs.Parse(os.Args[2:])
	if *page < 1 {
		fail("page must be a positive integer")
	}

	c, logger := setup(*configPath, false)
	defer c.Close()
	defer logger.Sync()
	ctx := context.Background()

	const pageSize = 10
	total, err := c.Storage.CountMatchesByOwner(ctx, *owner)
	if err != nil {
		fail("Failed to count matches: %v", err)
	}
	matches, err := c.Storage.ListMatchesByOwner(ctx, *owner, (*page-1)*pageSize, pageSize)
	if err != nil {
		fail("Failed to list matches: %v", err)
	}
	if err := cli.WriteMatches(os.Stdout, matches); err != nil {
		fail("%v", err)
	}
	fmt.Printf("Page %d of %s (%d matches)\n", *page, strconv.FormatInt((total+pageSize-1)/pageSize, 10), total)
}

func runMonitorOnce() {
	fs := flag.NewFlagSet("monitor-once", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	c, logger := setup(*configPath, *debug)
	defer c.Close()
	defer logger.Sync()

	report := c.NewScheduler(logger).RunOnce(context.Background())
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
	if report.Failed > 0 {
		os.Exit(2)
	}
}
