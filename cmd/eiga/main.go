// Package main is the eiga CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

	"github.com/hyperjump/eiga/internal/catalog"
	"github.com/hyperjump/eiga/internal/cli"
	"github.com/hyperjump/eiga/internal/config"
	"github.com/hyperjump/eiga/internal/embedding"
	"github.com/hyperjump/eiga/internal/importer"
	"github.com/hyperjump/eiga/internal/metrics"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/recommend"
	"github.com/hyperjump/eiga/internal/server"
	"github.com/hyperjump/eiga/internal/storage"
	"github.com/hyperjump/eiga/internal/watcher"
	"github.com/hyperjump/eiga/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/eiga/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present; if neither exists, built-in defaults are used.
// Returns the config and the path that was actually loaded ("" for defaults).
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
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.DefaultConfig(), "", nil
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
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("eiga version %s\n", version)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	cat, err := components.Catalogs.Reload(ctx)
	components.Metrics.ObserveReload(err)
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}
	if cat.Len() == 0 {
		logger.Warn("catalog is empty; run `eiga import` to load movies",
			zap.String("database_path", components.Storage.Path()))
	} else if cat.Dimensions() != components.Embedder.Dimensions() {
		logger.Warn("catalog and embedder dimensions differ; recommendations will fail",
			zap.Int("catalog_dimensions", cat.Dimensions()),
			zap.Int("embedder_dimensions", components.Embedder.Dimensions()))
	}

	if cfg.Catalog.WatchOrDefault() {
		watchOpts := []watcher.WatcherOption{watcher.WithDebounce(cfg.Catalog.Debounce())}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.NewWatcher([]string{components.Storage.Path()}, func() {
			_, err := components.Catalogs.Reload(ctx)
			components.Metrics.ObserveReload(err)
		}, watchOpts...)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(
		components.Recommender,
		components.Catalogs,
		components.Storage,
		components.Embedder,
		components.Metrics,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func printRecommendUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: eiga recommend [flags] <description>\n\n")
	fmt.Fprintf(fs.Output(), "The description is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), "\n%s\n", cli.Tips)
	fmt.Fprintf(fs.Output(), `
Examples:
  eiga recommend sci-fi with space travel and aliens
  eiga recommend --limit 10 "a slow-burn heist thriller set in a big city"
  eiga recommend --output json "romantic comedy in paris"
  eiga recommend --server "" "animated family adventure"   # without a running server
  eiga recommend --like "Spirited Away"                     # movies similar to a catalog title
`)
}

// buildQuery joins positional args with spaces so multi-word descriptions
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after the description to the front so
// fs.Parse sees them; the flag package stops at the first non-flag argument.
// Positional arguments keep their order. A flag without "=" takes the next
// argument as its value unless fs defines it as boolean, and "--" ends flag
// scanning.
func argsReorder(fs *flag.FlagSet, args []string) []string {
	flags := make([]string, 0, len(args))
	positional := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(a) < 2 || a[0] != '-' {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") || isBoolFlag(fs, name) {
			continue
		}
		if i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return append(flags, positional...)
}

func isBoolFlag(fs *flag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = load the catalog directly)")
	limit := fs.Int("limit", 0, "number of recommendations (0 = configured default, 5)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	like := fs.String("like", "", "recommend movies similar to this catalog title instead of a description")
	fs.Usage = func() { printRecommendUsage(fs) }
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))

	presenter, err := cli.NewPresenter(cli.OutputFormat(*outputFormat))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	query := &models.RecommendQuery{Query: buildQuery(fs.Args()), Limit: *limit}
	if query.Query == "" && *like == "" {
		fmt.Fprintf(os.Stderr, "Please enter your movie preferences!\n\n%s\n", cli.Tips)
		os.Exit(1)
	}

	var response *models.RecommendResponse
	switch {
	case *like != "" && *serverURL != "":
		response, err = similarViaHTTP(http.DefaultClient, *serverURL, *like, *limit)
	case *like != "":
		response, err = recommendDirect(*configPath, func(ctx context.Context, r *recommend.Recommender) (*models.RecommendResponse, error) {
			return r.SimilarToTitle(ctx, *like, *limit)
		})
	case *serverURL != "":
		response, err = recommendViaHTTP(http.DefaultClient, *serverURL, query)
	default:
		response, err = recommendDirect(*configPath, func(ctx context.Context, r *recommend.Recommender) (*models.RecommendResponse, error) {
			return r.Recommend(ctx, query)
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommendation failed: %v\n", err)
		os.Exit(1)
	}
	if err := presenter.Present(os.Stdout, response); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// recommendDirect loads the catalog in-process and runs fn against it.
func recommendDirect(configPath string, fn func(context.Context, *recommend.Recommender) (*models.RecommendResponse, error)) (*models.RecommendResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	if _, err := components.Catalogs.Reload(ctx); err != nil {
		return nil, err
	}
	return fn(ctx, components.Recommender)
}

func recommendViaHTTP(client *http.Client, serverURL string, query *models.RecommendQuery) (*models.RecommendResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := client.Post(strings.TrimRight(serverURL, "/")+"/api/v1/recommend", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	var response models.RecommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func similarViaHTTP(client *http.Client, serverURL, title string, limit int) (*models.RecommendResponse, error) {
	params := url.Values{"title": {title}}
	if limit != 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	resp, err := client.Get(strings.TrimRight(serverURL, "/") + "/api/v1/similar?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	var response models.RecommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// decodeAPIError turns a non-200 response into an error carrying the server's message.
func decodeAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	metadataPath := fs.String("metadata", "", "movie metadata file (.csv, .tsv, or .xlsx)")
	embeddingsPath := fs.String("embeddings", "", "movie embeddings (.npy, one row per metadata row); empty = compute with the configured embedder")
	_ = fs.Parse(os.Args[2:])

	if *metadataPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: eiga import --metadata movies.csv [--embeddings movies.npy]")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	imp := importer.NewImporter(components.Storage,
		importer.WithEmbedder(components.Embedder),
		importer.WithLogger(logger))
	res, err := imp.Import(ctx, importer.Options{MetadataPath: *metadataPath, EmbeddingsPath: *embeddingsPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d movies (%d dimensions) into %s in %s\n",
		res.Movies, res.Dimensions, components.Storage.Path(), res.Duration.Round(time.Millisecond))
	if res.Dimensions != components.Embedder.Dimensions() {
		fmt.Fprintf(os.Stderr, "Warning: catalog has %d dimensions but the configured embedder produces %d\n",
			res.Dimensions, components.Embedder.Dimensions())
	}
}

// statusCatalog is the catalog section of GET /api/v1/status.
type statusCatalog struct {
	Loaded     bool      `json:"loaded"`
	Movies     int       `json:"movies"`
	Dimensions int       `json:"dimensions"`
	LoadedAt   time.Time `json:"loaded_at,omitempty"`
}

// statusResponse is the shape of GET /api/v1/status (and of direct-mode status).
type statusResponse struct {
	StoredMovies        int64                  `json:"stored_movies"`
	Catalog             statusCatalog          `json:"catalog"`
	EmbeddingDimensions int                    `json:"embedding_dimensions,omitempty"`
	DiskUsageBytes      *int64                 `json:"disk_usage_bytes,omitempty"`
	Config              map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var (
		status *statusResponse
		err    error
	)
	if *serverURL != "" {
		status, err = statusViaHTTP(http.DefaultClient, *serverURL)
	} else {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		return
	}
	writeStatusText(os.Stdout, status)
}

func statusViaHTTP(client *http.Client, serverURL string) (*statusResponse, error) {
	resp, err := client.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &status, nil
}

func statusDirect(configPath string) (*statusResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ctx := context.Background()
	n, err := store.CountMovies(ctx)
	if err != nil {
		return nil, err
	}
	status := &statusResponse{
		StoredMovies:        n,
		EmbeddingDimensions: cfg.Embedding.Dimensions,
		Config: map[string]interface{}{
			"embedding_provider": cfg.Embedding.Provider,
			"database_path":      store.Path(),
		},
	}
	if cat, err := catalog.Load(ctx, store); err == nil {
		status.Catalog = statusCatalog{Loaded: true, Movies: cat.Len(), Dimensions: cat.Dimensions()}
		if updated, err := store.UpdatedAt(ctx); err == nil {
			status.Catalog.LoadedAt = updated
		}
	}
	if diskBytes, err := store.DiskUsage(); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}

func writeStatusText(w io.Writer, s *statusResponse) {
	fmt.Fprintf(w, "Stored movies:     %d\n", s.StoredMovies)
	if s.Catalog.Loaded {
		fmt.Fprintf(w, "Catalog:           %d movies x %d dimensions\n", s.Catalog.Movies, s.Catalog.Dimensions)
		if !s.Catalog.LoadedAt.IsZero() {
			fmt.Fprintf(w, "Loaded at:         %s\n", s.Catalog.LoadedAt.Format(time.RFC3339))
		}
	} else {
		fmt.Fprintln(w, "Catalog:           not loaded")
	}
	if s.EmbeddingDimensions > 0 {
		fmt.Fprintf(w, "Embedder:          %d dimensions\n", s.EmbeddingDimensions)
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "Disk usage:        %s\n", formatBytes(*s.DiskUsageBytes))
	}
	for _, key := range []string{"embedding_provider", "database_path"} {
		if v, ok := s.Config[key]; ok {
			fmt.Fprintf(w, "%-19s%v\n", strings.ReplaceAll(key, "_", " ")+":", v)
		}
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Components holds initialized services.
type Components struct {
	Storage     *storage.SQLiteStorage
	Embedder    embedding.Embedder
	Catalogs    *catalog.Store
	Recommender *recommend.Recommender
	Metrics     *metrics.Metrics
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.New(ctx, &cfg.Embedding, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	m := metrics.New()
	catalogs := catalog.NewStore(store,
		catalog.WithLogger(logger),
		catalog.WithOnSwap(func(c *catalog.Catalog) { m.SetCatalog(c.Len(), c.Dimensions()) }),
	)
	rec := recommend.NewRecommender(catalogs, embedder, &cfg.Recommend,
		recommend.WithLogger(logger),
		recommend.WithMetrics(m),
	)

	return &Components{
		Storage:     store,
		Embedder:    embedder,
		Catalogs:    catalogs,
		Recommender: rec,
		Metrics:     m,
	}, nil
}

func printUsage() {
	fmt.Println(`eiga - Movie recommendations from a plain-language description

Usage:
  eiga server [flags]                 Start the HTTP server
  eiga recommend [flags] <text>       Recommend movies matching a description
  eiga import [flags]                 Load a movie catalog into storage
  eiga status [flags]                 Show catalog/storage status
  eiga version                        Show version
  eiga help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/eiga/config.yaml)
  --debug            Enable debug logging

Recommend Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to load the catalog directly.
  --limit int        Number of recommendations (default from config, 5)
  --output string    Output format: text, compact, or json (default: text)
  --like string      Recommend movies similar to this catalog title (fuzzy match)

Import Flags:
  --config string      Config file path
  --metadata string    Movie metadata (.csv, .tsv, .xlsx) with a title column
  --embeddings string  Movie embeddings (.npy); omit to compute with the configured embedder

Status Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

` + cli.Tips + `

Examples:
  eiga import --metadata movie_metadata.csv --embeddings movie_embeddings.npy
  eiga server
  eiga recommend "I like sci-fi movies with racing cars and a bit of comedy"
  eiga recommend --output compact --limit 10 heist thriller
  eiga status --output json`)
}
