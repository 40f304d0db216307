// Package main is the BookRS CLI entry point.
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
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/bookrs/internal/artifact"
	"github.com/hyperjump/bookrs/internal/cli"
	"github.com/hyperjump/bookrs/internal/config"
	"github.com/hyperjump/bookrs/internal/encoder"
	"github.com/hyperjump/bookrs/internal/keyword"
	"github.com/hyperjump/bookrs/internal/models"
	"github.com/hyperjump/bookrs/internal/popularity"
	"github.com/hyperjump/bookrs/internal/recommend"
	"github.com/hyperjump/bookrs/internal/semantic"
	"github.com/hyperjump/bookrs/internal/server"
	"github.com/hyperjump/bookrs/internal/storage"
	"github.com/hyperjump/bookrs/internal/watcher"
	"github.com/hyperjump/bookrs/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/bookrs/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "bookrs server" from the project dir uses the project's config.
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
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
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
	case "recommend":
		runRecommend()
	case "popular":
		runPopular()
	case "status":
		runStatus()
	case "verify":
		runVerify()
	case "build-popularity":
		runBuildPopularity()
	case "import":
		runImport()
	case "version", "--version", "-v":
		fmt.Printf("bookrs version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components bundles everything a direct-mode command needs.
type Components struct {
	Store        *artifact.Store
	Encoder      encoder.Encoder
	Storage      storage.Storage
	KeywordIndex keyword.KeywordIndex
	Engine       *recommend.Engine
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Encoder != nil {
		_ = c.Encoder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := artifact.NewStore(cfg.Artifacts.Paths(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifacts: %w", err)
	}

	var enc encoder.Encoder
	onnxEncoder, err := encoder.NewONNXEncoder(
		cfg.Encoder.ModelPath,
		cfg.Encoder.Dimensions,
		cfg.Encoder.MaxTokens,
		cfg.Encoder.CacheSize,
	)
	if err != nil {
		logger.Warn("ONNX encoder unavailable, using hash encoder", zap.Error(err))
		enc = encoder.NewHashEncoder(cfg.Encoder.Dimensions)
	} else {
		enc = onnxEncoder
	}

	st, err := storage.NewSQLiteStorage(cfg.Catalog.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Catalog.BleveIndexPath)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	engineCfg := recommend.Config{
		SemanticWeight: cfg.Recommend.SemanticWeight,
		CFWeight:       cfg.Recommend.CFWeight,
		PopWeight:      cfg.Recommend.PopWeight,
		CandidateFloor: cfg.Recommend.CandidateFloor,
		DefaultTopK:    cfg.Recommend.DefaultTopK,
		MaxTopK:        cfg.Recommend.MaxTopK,
	}
	engine := recommend.NewEngine(store, semantic.NewScorer(enc), engineCfg, logger)

	return &Components{
		Store:        store,
		Encoder:      enc,
		Storage:      st,
		KeywordIndex: keywordIndex,
		Engine:       engine,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
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

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Artifacts.Watch {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		p := cfg.Artifacts.Paths()
		names := []string{
			filepath.Base(p.Embeddings), filepath.Base(p.Meta),
			filepath.Base(p.UserFactors), filepath.Base(p.ItemFactors),
			filepath.Base(p.UserMap), filepath.Base(p.ItemMap),
			filepath.Base(p.Popularity),
		}
		watchSvc := watcher.NewWatcher(cfg.Artifacts.Dir, names, func() {
			if err := components.Store.Reload(); err != nil {
				logger.Warn("artifact reload failed", zap.Error(err))
			}
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Engine,
		components.Store,
		components.Storage,
		components.KeywordIndex,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuery joins all positional args with spaces so multi-word queries work
// the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
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

func printRecommendUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: bookrs recommend [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. An empty query returns the most popular books.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  bookrs recommend space opera with politics
  bookrs recommend --user 42 "regency romance"     # personalized when user 42 has rating history
  bookrs recommend --k 5 --output json time travel
  bookrs recommend --server "" cozy mystery        # direct artifact access, no server needed
`)
}

func runRecommend() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct artifact access)")
	userID := fs.Int64("user", 0, "user id for personalization (0 = anonymous)")
	topK := fs.Int("k", 10, "number of results")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() { printRecommendUsage(fs) }
	_ = fs.Parse(args)

	queryStr := buildQuery(fs.Args())

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	query := models.RecommendQuery{Query: queryStr, TopK: *topK}
	if *userID != 0 {
		query.UserID = userID
	}

	var response *models.RecommendResponse
	if *serverURL != "" {
		response, err = recommendViaHTTP(*serverURL, query)
	} else {
		response, err = recommendDirect(*configPath, query)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecommendations(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func recommendViaHTTP(serverURL string, query models.RecommendQuery) (*models.RecommendResponse, error) {
	params := url.Values{}
	params.Set("q", query.Query)
	params.Set("k", fmt.Sprintf("%d", query.TopK))
	if query.UserID != nil {
		params.Set("user_id", fmt.Sprintf("%d", *query.UserID))
	}
	resp, err := http.Get(serverURL + "/api/v1/recommend?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.RecommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func recommendDirect(configPath string, query models.RecommendQuery) (*models.RecommendResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	return components.Engine.Recommend(context.Background(), query)
}

func runPopular() {
	fs := flag.NewFlagSet("popular", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct artifact access)")
	topK := fs.Int("k", 10, "number of results")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var response *models.RecommendResponse
	if *serverURL != "" {
		response, err = popularViaHTTP(*serverURL, *topK)
	} else {
		// An empty query routes through the popularity fallback.
		response, err = recommendDirect(*configPath, models.RecommendQuery{TopK: *topK})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Popular failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecommendations(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func popularViaHTTP(serverURL string, k int) (*models.RecommendResponse, error) {
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/popular?k=%d", serverURL, k))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.RecommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct artifact access)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "decode response: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	bundle, err := artifact.Load(cfg.Artifacts.Paths())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load artifacts: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("artifacts:  %s\n", bundle.Summary())
	fmt.Printf("dir:        %s\n", cfg.Artifacts.Dir)
}

// runVerify loads every artifact and reports per-file diagnostics. It exists
// so a bad retraining run can be caught before pointing the server at it.
func runVerify() {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dir := fs.String("dir", "", "artifact directory (overrides config)")
	_ = fs.Parse(os.Args[2:])

	var paths artifact.Paths
	if *dir != "" {
		paths = artifact.DefaultPaths(*dir)
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		paths = cfg.Artifacts.Paths()
	}

	bundle, err := artifact.Load(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: %s\n", bundle.Summary())
	fmt.Printf("  embeddings:    %d books x %d dims\n", bundle.Embeddings.Len(), bundle.Embeddings.Dim)
	fmt.Printf("  user factors:  %d users x %d\n", bundle.UserFactors.Len(), bundle.UserFactors.K)
	fmt.Printf("  item factors:  %d items x %d\n", bundle.ItemFactors.Len(), bundle.ItemFactors.K)
	fmt.Printf("  popularity:    %d entries\n", len(bundle.Popularity))
}

// runBuildPopularity recomputes the popularity table from the catalog's
// ratings and writes it into the artifact directory.
func runBuildPopularity() {
	fs := flag.NewFlagSet("build-popularity", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.String("out", "", "output path (default: popularity.json in the artifact dir)")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	st, err := storage.NewSQLiteStorage(cfg.Catalog.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open catalog: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	stats, err := st.RatingStats(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to aggregate ratings: %v\n", err)
		os.Exit(1)
	}
	table := popularity.Build(stats)

	path := *out
	if path == "" {
		path = cfg.Artifacts.Paths().Popularity
	}
	if err := artifact.WritePopularity(path, table); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write popularity table: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d popularity entries to %s\n", len(table), path)
}

// runImport loads the book metadata artifact into the catalog database and
// the keyword index, so the HTTP catalog endpoints serve the same books the
// recommender scores.
func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	metaPath := fs.String("meta", "", "book metadata path (default: book_meta.json in the artifact dir)")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	path := *metaPath
	if path == "" {
		path = cfg.Artifacts.Paths().Meta
	}
	meta, err := artifact.ReadMeta(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read metadata: %v\n", err)
		os.Exit(1)
	}

	st, err := storage.NewSQLiteStorage(cfg.Catalog.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open catalog: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()
	kwIdx, err := keyword.NewBleveIndex(cfg.Catalog.BleveIndexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open keyword index: %v\n", err)
		os.Exit(1)
	}
	defer kwIdx.Close()

	books := make([]*models.Book, 0, len(meta))
	for _, m := range meta {
		books = append(books, &models.Book{ID: m.BookID, Title: m.Title, Authors: m.Authors})
	}
	ctx := context.Background()
	if err := st.BatchCreateBooks(ctx, books); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to import books: %v\n", err)
		os.Exit(1)
	}
	if err := kwIdx.IndexBooks(ctx, books); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to index books: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d books\n", len(books))
}

func printUsage() {
	fmt.Println(`bookrs - Hybrid book recommendation engine

Usage:
  bookrs server [flags]               Start the HTTP server
  bookrs recommend [flags] <query>    Recommend books for a query
  bookrs popular [flags]              Show the most popular books
  bookrs status [flags]               Show artifact and engine status
  bookrs verify [flags]               Validate the artifact set
  bookrs build-popularity [flags]     Rebuild the popularity table from ratings
  bookrs import [flags]               Import book metadata into the catalog
  bookrs version                      Show version
  bookrs help                         Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/bookrs/config.yaml)
  --debug            Enable debug logging

Recommend Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct artifact access.
  --user int         User id for personalization (0 = anonymous)
  --k int            Number of results (default: 10)
  --output string    Output format: text, compact, or json (default: text)

Examples:
  bookrs server
  bookrs recommend space opera with politics
  bookrs recommend --user 42 --k 5 "regency romance"
  bookrs popular --k 20
  bookrs verify --dir ./artifacts
  bookrs build-popularity
  bookrs import`)
}
