// Package main is the insightbot CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/insightbot/internal/builder"
	"github.com/hyperjump/insightbot/internal/cli"
	"github.com/hyperjump/insightbot/internal/config"
	"github.com/hyperjump/insightbot/internal/embedding"
	"github.com/hyperjump/insightbot/internal/keyword"
	"github.com/hyperjump/insightbot/internal/llm"
	"github.com/hyperjump/insightbot/internal/models"
	"github.com/hyperjump/insightbot/internal/rag"
	"github.com/hyperjump/insightbot/internal/search"
	"github.com/hyperjump/insightbot/internal/server"
	"github.com/hyperjump/insightbot/internal/session"
	"github.com/hyperjump/insightbot/internal/storage"
	"github.com/hyperjump/insightbot/internal/watcher"
	"github.com/hyperjump/insightbot/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/insightbot/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if it exists, so running from a project dir uses that
// project's config. Returns the config and the path actually loaded.
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
	case "serve", "server":
		runServe()
	case "build":
		runBuild()
	case "ask":
		runAsk()
	case "search":
		runSearch()
	case "lookup":
		runLookup()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("insightbot version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and creates the logger shared by every command.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config %s:\n%v\n", resolved, err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))
	return cfg, logger
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	skipBuild := fs.Bool("skip-build", false, "serve existing indices without rebuilding changed datasets")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer func() { _ = logger.Sync() }()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*skipBuild {
		if _, err := components.Builder.BuildAll(ctx, false); err != nil {
			logger.Warn("some datasets failed to build", zap.Error(err))
		}
		if _, err := components.Builder.Prune(ctx); err != nil {
			logger.Warn("prune failed", zap.Error(err))
		}
	}
	for _, ds := range cfg.Corpus.Datasets {
		components.Engine.Register(ds.Name)
	}
	if err := components.Engine.LoadAll(ctx); err != nil {
		logger.Warn("some datasets failed to load", zap.Error(err))
	}

	go components.Sessions.Run(ctx, cfg.Session.PruneInterval, cfg.Session.IdleTTL)

	if cfg.Watch.Enabled {
		w := watcher.NewWatcher(cfg.Corpus.Datasets, func(name string) {
			res, err := components.Builder.Refresh(ctx, name, false, components.Engine)
			if err != nil {
				logger.Error("rebuild after change failed", zap.String("dataset", name), zap.Error(err))
				return
			}
			logger.Info("dataset refreshed", zap.String("dataset", name), zap.Bool("skipped", res.Skipped), zap.Int("count", res.Count))
		}, watcher.WithLogger(logger), watcher.WithDebounce(cfg.Watch.Debounce))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(components.Engine, components.Sessions, components.Builder, components.Storage, cfg, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "rebuild even when sources are unchanged")
	prune := fs.Bool("prune", false, "remove datasets that are no longer configured")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := mustFormat(*outputFormat)
	cfg, logger := setup(*configPath, false)
	defer func() { _ = logger.Sync() }()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	b := builder.New(store, cfg, builder.WithLogger(logger))
	ctx := context.Background()

	var results []*builder.Result
	if names := fs.Args(); len(names) > 0 {
		for _, name := range names {
			ds, ok := cfg.Dataset(name)
			if !ok {
				fmt.Fprintf(os.Stderr, "Unknown dataset: %s\n", name)
				os.Exit(1)
			}
			res, err := b.Build(ctx, ds, *force)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Build %s failed: %v\n", name, err)
				os.Exit(1)
			}
			results = append(results, res)
		}
	} else {
		results, err = b.BuildAll(ctx, *force)
		if err != nil {
			_ = cli.WriteBuildResults(os.Stdout, results, format)
			fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteBuildResults(os.Stdout, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if *prune {
		removed, err := b.Prune(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Prune failed: %v\n", err)
			os.Exit(1)
		}
		for _, name := range removed {
			fmt.Printf("%s: pruned\n", name)
		}
	}
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: insightbot ask [flags] [question]\n\n")
	fmt.Fprintf(fs.Output(), "With a question, answers it once. Without one, starts a chat on stdin;\n")
	fmt.Fprintf(fs.Output(), "type /clear to forget the conversation and /exit to quit.\n\n")
	fs.PrintDefaults()
}

func runAsk() {
	askArgs := searchArgsReorder(os.Args[2:])
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dataset := fs.String("dataset", "", "dataset to answer from (default: corpus.default)")
	verbose := fs.Bool("verbose", false, "show the records each answer was grounded on")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(askArgs)

	format := mustFormat(*outputFormat)
	cfg, logger := setup(*configPath, false)
	defer func() { _ = logger.Sync() }()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx := context.Background()
	name := datasetOrDefault(cfg, *dataset)
	if err := components.Engine.Load(ctx, name); err != nil {
		fmt.Fprintf(os.Stderr, "Load failed (run \"insightbot build\" first): %v\n", err)
		os.Exit(1)
	}
	sess, err := components.Sessions.Create(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Session failed: %v\n", err)
		os.Exit(1)
	}

	if q := buildSearchQuery(fs.Args()); q != "" {
		if err := ask(ctx, components.Sessions, sess.ID, q, os.Stdout, format, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := chat(ctx, components.Sessions, sess.ID, os.Stdin, os.Stdout, format, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
		os.Exit(1)
	}
}

func ask(ctx context.Context, sessions *session.Manager, id, query string, w io.Writer, format cli.OutputFormat, verbose bool) error {
	ans, err := sessions.Ask(ctx, id, query)
	if err != nil {
		return err
	}
	return cli.WriteAnswer(w, ans, format, verbose)
}

// chat reads one question per line from r until EOF or /exit.
func chat(ctx context.Context, sessions *session.Manager, id string, r io.Reader, w io.Writer, format cli.OutputFormat, verbose bool) error {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			if err := sessions.Clear(id); err != nil {
				return err
			}
			fmt.Fprintln(w, "(conversation cleared)")
			continue
		}
		if err := ask(ctx, sessions, id, line, w, format, verbose); err != nil {
			return err
		}
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: insightbot search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Returns the k records nearest to the query embedding, without generating an answer.

Examples:
  insightbot search serum vitamin c
  insightbot search -k 10 --dataset tiktok "viral lipstick"
  insightbot search --server "" sunscreen     # read indices directly
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. The flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
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

func datasetOrDefault(cfg *config.Config, name string) string {
	if name != "" {
		return name
	}
	return cfg.Corpus.Default
}

func mustFormat(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read indices directly)")
	dataset := fs.String("dataset", "", "dataset to search (default: corpus.default)")
	k := fs.Int("k", 0, "number of records (default: retrieval.top_k)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := mustFormat(*outputFormat)
	query := &models.SearchQuery{Dataset: *dataset, Query: queryStr, K: *k}

	if *serverURL != "" {
		// The server holds the SQLite handle and indices; query through it.
		response, err := searchViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteHits(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, logger := setup(*configPath, false)
	defer func() { _ = logger.Sync() }()
	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	query.Dataset = datasetOrDefault(cfg, query.Dataset)
	if err := query.Validate(cfg.Retrieval.TopK, cfg.Retrieval.MaxK); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid query: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	if err := components.Engine.Load(ctx, query.Dataset); err != nil {
		fmt.Fprintf(os.Stderr, "Load failed: %v\n", err)
		os.Exit(1)
	}
	response, err := components.Engine.Search(ctx, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteHits(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
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

func runLookup() {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dataset := fs.String("dataset", "", "dataset to search (default: corpus.default)")
	field := fs.String("field", "", "restrict matching to one metadata column")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	limit := fs.Int("limit", 10, "number of records")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	q := buildSearchQuery(fs.Args())
	if q == "" {
		fmt.Println("Usage: insightbot lookup [flags] <keywords>")
		os.Exit(1)
	}
	format := mustFormat(*outputFormat)
	cfg, logger := setup(*configPath, false)
	defer func() { _ = logger.Sync() }()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()
	// Lookup never embeds; a zero-dimension embedder keeps the engine from
	// checking the index dimension against a remote model.
	engine := search.NewEngine(store, embedding.NewMockEmbedder(0),
		search.WithLogger(logger),
		search.WithIndexType(cfg.Corpus.IndexType),
		search.WithKeywordPaths(cfg.KeywordPath),
	)
	defer engine.Close()

	name := datasetOrDefault(cfg, *dataset)
	ctx := context.Background()
	if err := engine.Load(ctx, name); err != nil {
		fmt.Fprintf(os.Stderr, "Load failed: %v\n", err)
		os.Exit(1)
	}
	ds, err := engine.Dataset(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
		os.Exit(1)
	}
	matches, err := ds.Lookup(ctx, q, *limit, &keyword.SearchOptions{Field: *field, FuzzyEnabled: *fuzzy})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteMatches(os.Stdout, name, q, matches, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := mustFormat(*outputFormat)
	var datasets []search.DatasetStatus
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		datasets = res
	} else {
		datasets = localStatus(*configPath)
	}
	if err := cli.WriteStatus(os.Stdout, datasets, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// localStatus reports configured datasets from the catalog without loading indices.
func localStatus(configPath string) []search.DatasetStatus {
	cfg, logger := setup(configPath, false)
	defer func() { _ = logger.Sync() }()
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	out := make([]search.DatasetStatus, 0, len(cfg.Corpus.Datasets))
	for _, ds := range cfg.Corpus.Datasets {
		st := search.DatasetStatus{Name: ds.Name}
		info, err := store.GetDataset(ctx, ds.Name)
		if err == nil {
			st.Loaded = true
			st.Size = info.Count
			st.Dimension = info.Dimension
			st.IndexType = cfg.Corpus.IndexType
			st.Fingerprint = info.Fingerprint
			st.BuiltAt = info.BuiltAt
			_, kwErr := os.Stat(cfg.KeywordPath(ds.Name))
			st.Keywords = kwErr == nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Read catalog failed: %v\n", err)
			os.Exit(1)
		}
		out = append(out, st)
	}
	return out
}

func statusViaHTTP(serverURL string) ([]search.DatasetStatus, error) {
	resp, err := http.Get(serverURL + "/api/v1/datasets")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Datasets []search.DatasetStatus `json:"datasets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Datasets, nil
}

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Embedder  embedding.Embedder
	Generator llm.Generator
	Engine    *search.Engine
	Builder   *builder.Builder
	Sessions  *session.Manager
}

func (c *Components) Close() {
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// initializeComponents wires storage, providers and the serving stack. The
// generator and session manager are created only when chat is needed.
func initializeComponents(cfg *config.Config, logger *zap.Logger, chat bool) (*Components, error) {
	c := &Components{}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	c.Engine = search.NewEngine(store, embedder,
		search.WithLogger(logger),
		search.WithIndexType(cfg.Corpus.IndexType),
		search.WithKeywordPaths(cfg.KeywordPath),
	)
	c.Builder = builder.New(store, cfg, builder.WithLogger(logger))
	if !chat {
		return c, nil
	}

	generator, err := llm.New(cfg.Generation, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	c.Generator = generator

	orchestrator := rag.New(embedder, generator,
		rag.WithLogger(logger),
		rag.WithTopK(cfg.Retrieval.TopK),
		rag.WithSystemPrompt(cfg.Retrieval.SystemPrompt),
		rag.WithFallbackMessage(cfg.Retrieval.FallbackMessage),
		rag.WithCondenseQuestion(cfg.Retrieval.CondenseQuestion),
	)
	c.Sessions = session.NewManager(orchestrator, c.Engine,
		session.WithLogger(logger),
		session.WithTranscripts(store),
		session.WithMemoryTurns(cfg.Retrieval.MemoryTurns),
		session.WithDefaultDataset(cfg.Corpus.Default),
	)
	logger.Info("components initialized",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("generation_model", generator.Model()),
		zap.Int("datasets", len(cfg.Corpus.Datasets)),
	)
	return c, nil
}

func printUsage() {
	fmt.Println(`insightbot - Marketing insight chatbot over product and social media corpora

Usage:
  insightbot serve [flags]             Build changed datasets and start the HTTP server
  insightbot build [flags] [dataset]   Build vector and keyword indices from .npy + table sources
  insightbot ask [flags] [question]    Answer one question, or chat on stdin
  insightbot search [flags] <query>    Return the records nearest to a query
  insightbot lookup [flags] <keywords> Keyword lookup over record metadata
  insightbot status [flags]            Show dataset status
  insightbot version                   Show version
  insightbot help                      Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/insightbot/config.yaml,
                     or ./config.yaml when present)
  --output string    Output format: text or json (default: text)

Serve Flags:
  --debug            Enable debug logging
  --skip-build       Serve existing indices without rebuilding

Build Flags:
  --force            Rebuild even when sources are unchanged
  --prune            Remove datasets that are no longer configured

Ask Flags:
  --dataset string   Dataset to answer from (default: corpus.default)
  --verbose          Show the records each answer was grounded on

Search Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to read indices directly.
  --dataset string   Dataset to search
  --k int            Number of records (default: retrieval.top_k)

Lookup Flags:
  --dataset string   Dataset to search
  --field string     Restrict matching to one metadata column
  --fuzzy            Enable typo tolerance
  --limit int        Number of records (default: 10)

Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to read storage directly.

Examples:
  insightbot build --force produk
  insightbot serve
  insightbot ask "Which skincare product has the best promo?"
  insightbot ask --dataset tiktok
  insightbot search -k 8 sunscreen
  insightbot lookup --field caption --fuzzy "vitamn c"
  insightbot status --output json`)
}
