// Package main is the kikigaki CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kikigaki/internal/archive"
	"github.com/hyperjump/kikigaki/internal/catalog"
	"github.com/hyperjump/kikigaki/internal/cli"
	"github.com/hyperjump/kikigaki/internal/config"
	"github.com/hyperjump/kikigaki/internal/models"
	"github.com/hyperjump/kikigaki/internal/pipeline"
	"github.com/hyperjump/kikigaki/internal/searchidx"
	"github.com/hyperjump/kikigaki/internal/server"
	"github.com/hyperjump/kikigaki/internal/watcher"
	"github.com/hyperjump/kikigaki/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kikigaki/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists it
// is used. When neither exists, built-in defaults apply and the returned path
// is empty. An explicitly passed path must exist.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); statErr != nil {
			cfg, defErr := config.Default()
			if defErr != nil {
				return nil, "", defErr
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "process":
		runProcess()
	case "status":
		runStatus()
	case "search":
		runSearch()
	case "watch":
		runWatch()
	case "serve":
		runServe()
	case "version", "--version", "-v":
		fmt.Printf("kikigaki version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// printProcessUsage prints process subcommand usage.
func printProcessUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kikigaki process [flags] [show ...]\n\n")
	fmt.Fprintf(fs.Output(), "Shows are config-table names or archive prefixes; unknown arguments are taken as prefixes verbatim. With no shows and no --all, the configured default prefixes are processed.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  kikigaki process
  kikigaki process "security now" twit
  kikigaki process SN TWIT --by-year
  kikigaki process --all --force
`)
}

func runProcess() {
	args := flagsFirst(os.Args[2:])
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	all := fs.Bool("all", false, "process every show found in the archive")
	byYear := fs.Bool("by-year", false, "additionally split chunks at calendar year boundaries")
	workers := fs.Int("workers", 0, "parser goroutines (0 = config value)")
	force := fs.Bool("force", false, "reparse documents even when the catalog copy is current")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printProcessUsage(fs) }
	_ = fs.Parse(args)

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
		zap.Bool("debug", debugMode),
	)

	if *byYear {
		cfg.Chunks.ByYear = true
	}
	if *workers > 0 {
		cfg.Process.Workers = *workers
	}

	resolver := archive.NewResolver(cfg.Shows)
	var prefixes []string
	for _, arg := range fs.Args() {
		prefixes = append(prefixes, resolver.Prefix(arg))
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	sum, err := components.Pipeline.Run(ctx, pipeline.RunOptions{
		Prefixes: prefixes,
		All:      *all,
		Force:    *force,
	})
	if err != nil {
		logger.Fatal("Processing failed", zap.Error(err))
	}
	chunks, err := components.Catalog.ListChunks(ctx, sum.RunID)
	if err != nil {
		logger.Warn("chunk inventory unavailable", zap.Error(err))
	}
	cli.WriteRunSummary(os.Stdout, sum, chunks)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kikigaki search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  kikigaki search buffer overflow
  kikigaki search "buffer overflow"                       # same as above
  kikigaki search --prefix SN --speaker "Steve Gibson" firewall
  kikigaki search --output json --limit 20 your query
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// flagsFirst moves any flags (and their values) that appear after positional
// arguments to the front of the slice so that flag.Parse() sees them. Go's
// flag package stops at the first non-flag argument, so "kikigaki search
// \"query\" -limit 5" would otherwise leave -limit unparsed.
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

func runSearch() {
	args := flagsFirst(os.Args[2:])
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = open the index directly)")
	limit := fs.Int("limit", 0, "number of hits (0 = config default)")
	offset := fs.Int("offset", 0, "hits to skip")
	prefix := fs.String("prefix", "", "restrict to one show name or prefix")
	speaker := fs.String("speaker", "", "restrict to utterances by a speaker")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		printSearchUsage(fs)
		os.Exit(1)
	}
	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	resolver := archive.NewResolver(cfg.Shows)
	searchQuery := &models.SearchQuery{
		Query:   queryStr,
		Speaker: *speaker,
		Limit:   *limit,
		Offset:  *offset,
	}
	if *prefix != "" {
		searchQuery.Prefix = resolver.Prefix(*prefix)
	}
	if searchQuery.Limit == 0 {
		searchQuery.Limit = cfg.Search.DefaultLimit
	}

	if *serverURL != "" {
		// Use the HTTP API when a server is running (avoids the bleve
		// index lock).
		response, err := searchViaHTTP(*serverURL, searchQuery)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ix, err := searchidx.Open(cfg.Storage.BleveIndexPath, cfg.Search.SpeakerBoost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open search index: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = ix.Close() }()

	response, err := ix.Search(context.Background(), searchQuery)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	params := url.Values{}
	params.Set("q", query.Query)
	if query.Prefix != "" {
		params.Set("prefix", query.Prefix)
	}
	if query.Speaker != "" {
		params.Set("speaker", query.Speaker)
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		params.Set("offset", strconv.Itoa(query.Offset))
	}
	resp, err := http.Get(serverURL + "/api/v1/search?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// statusResponse is the shape of GET /api/v1/status, also built locally
// when reading the catalog directly.
type statusResponse struct {
	Episodes          int                `json:"episodes"`
	Shows             map[string]int     `json:"shows"`
	IndexedUtterances *uint64            `json:"indexed_utterances,omitempty"`
	LastRun           *models.RunSummary `json:"last_run,omitempty"`
	LastRunChunks     []models.ChunkInfo `json:"last_run_chunks,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the catalog directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cat, err := catalog.Open(cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open catalog: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = cat.Close() }()

		ctx := context.Background()
		counts, err := cat.CountEpisodes(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count episodes failed: %v\n", err)
			os.Exit(1)
		}
		last, err := cat.LastRun(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Last run lookup failed: %v\n", err)
			os.Exit(1)
		}
		var chunks []models.ChunkInfo
		if last != nil {
			if cs, err := cat.ListChunks(ctx, last.RunID); err == nil {
				chunks = cs
			}
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		status = statusResponse{
			Episodes:      total,
			Shows:         counts,
			LastRun:       last,
			LastRunChunks: chunks,
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		cli.WriteStatus(os.Stdout, status.Shows, status.LastRun, status.LastRunChunks)
		if status.IndexedUtterances != nil {
			fmt.Printf("\nIndexed utterances: %d\n", *status.IndexedUtterances)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
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
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	sum, err := components.Pipeline.Run(ctx, pipeline.RunOptions{All: true})
	if err != nil {
		logger.Fatal("Initial processing failed", zap.Error(err))
	}
	logger.Info("initial run complete",
		zap.Int("parsed", sum.Parsed),
		zap.Int("reused", sum.Reused),
		zap.Int("chunks", sum.Chunks),
	)

	w := newArchiveWatcher(cfg, components.Pipeline, logger, debugMode)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := w.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer w.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down...")
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	watch := fs.Bool("watch", false, "also watch the archive and reprocess on change")
	debug := fs.Bool("debug", false, "enable debug logging")
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
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var w *watcher.Watcher
	if *watch {
		w = newArchiveWatcher(cfg, components.Pipeline, logger, debugMode)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(components.Catalog, components.Index, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if w != nil {
		w.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// newArchiveWatcher builds a watcher that reprocesses dirty shows
// through the pipeline.
func newArchiveWatcher(cfg *config.Config, p *pipeline.Pipeline, logger *zap.Logger, debug bool) *watcher.Watcher {
	debounce := time.Duration(cfg.Watch.DebounceMS) * time.Millisecond
	opts := []watcher.WatcherOption{}
	if debug {
		opts = append(opts, watcher.WithLogger(logger))
	}
	return watcher.New(cfg.Archive.Dir, cfg.Archive.Extensions, debounce, func(prefixes []string) {
		sum, err := p.Run(context.Background(), pipeline.RunOptions{Prefixes: prefixes})
		if err != nil {
			logger.Warn("reprocess failed", zap.Strings("prefixes", prefixes), zap.Error(err))
			return
		}
		logger.Info("reprocessed",
			zap.Strings("prefixes", prefixes),
			zap.Int("parsed", sum.Parsed),
			zap.Int("reused", sum.Reused),
			zap.Int("chunks", sum.Chunks),
		)
	}, opts...)
}

// Components holds initialized services.
type Components struct {
	Catalog  *catalog.Catalog
	Index    *searchidx.Index
	Pipeline *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	cat, err := catalog.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	var ix *searchidx.Index
	if cfg.Process.IndexUtterancesOrDefault() && cfg.Storage.BleveIndexPath != "" {
		ix, err = searchidx.Open(cfg.Storage.BleveIndexPath, cfg.Search.SpeakerBoost)
		if err != nil {
			_ = cat.Close()
			return nil, fmt.Errorf("failed to open search index: %w", err)
		}
	}

	opts := []pipeline.PipelineOption{pipeline.WithLogger(logger)}
	if ix != nil {
		opts = append(opts, pipeline.WithIndex(ix))
	}
	p := pipeline.New(cfg, cat, opts...)

	return &Components{
		Catalog:  cat,
		Index:    ix,
		Pipeline: p,
	}, nil
}

func printUsage() {
	fmt.Println(`kikigaki - transcript archive processor

Usage:
  kikigaki process [flags] [show ...]   Parse archive documents and write chunk files
  kikigaki status [flags]               Show catalog and last-run status
  kikigaki search [flags] <query>       Search indexed utterances
  kikigaki watch [flags]                Process once, then reprocess as the archive changes
  kikigaki serve [flags]                Start the HTTP API server
  kikigaki version                      Show version
  kikigaki help                         Show this help

Process Flags:
  --config string    Config file path (default: /usr/local/etc/kikigaki/config.yaml, ./config.yaml preferred when present)
  --all              Process every show found in the archive
  --by-year          Additionally split chunks at calendar year boundaries
  --workers int      Parser goroutines (default: config value)
  --force            Reparse documents even when the catalog copy is current
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path
  --server string    Server URL; empty (default) opens the index directly
  --limit int        Number of hits (default: config value)
  --offset int       Hits to skip
  --prefix string    Restrict to one show name or prefix
  --speaker string   Restrict to utterances by a speaker
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path
  --server string    Server URL; empty (default) reads the catalog directly
  --output string    Output format: text or json (default: text)

Serve Flags:
  --config string    Config file path
  --watch            Also watch the archive and reprocess on change
  --debug            Enable debug logging

Examples:
  kikigaki process
  kikigaki process "security now" twit --by-year
  kikigaki process --all --force
  kikigaki search "buffer overflow"
  kikigaki search --prefix SN --speaker "Steve Gibson" firewall
  kikigaki status --output json
  kikigaki serve --watch`)
}
