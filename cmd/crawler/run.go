package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/browser"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/chunker"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/collector"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/discovery"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/llm"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/notebooklm"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/pipeline"
)

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func buildRequest(args []string) discovery.Request {
	return discovery.Request{
		Topic:     joinArgs(args),
		Grade:     runGrade,
		Subject:   runSubject,
		Subtopics: runSubtopics,
	}
}

// openStore builds the configured cache store. The caller closes it.
func openStore() (discovery.CacheStore, error) {
	path := cfg.CachePathAbs()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	switch cfg.Discovery.CacheBackend {
	case "sqlite":
		return discovery.NewSQLiteCacheStore(path)
	default:
		return discovery.NewFileCacheStore(path, cfg.Discovery.WatchCache)
	}
}

func openRouter(store discovery.CacheStore, method discovery.Method) *discovery.Router {
	resolver := discovery.StubResolver{Engine: method.String()}
	return discovery.NewRouter(store, resolver, cfg.Discovery.MaxResults, cfg.Discovery.BlockedDomains)
}

// runPipeline wires every component and executes one run.
func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := buildRequest(args)

	methodName := runMethod
	if methodName == "" {
		methodName = cfg.Discovery.Method
	}
	if len(runURLs) > 0 && runMethod == "" {
		methodName = "direct"
	}
	method, err := discovery.ParseMethod(methodName)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open discovery cache: %w", err)
	}
	defer store.Close()

	avail := cfg.AI.Availability()
	logger.Info("Starting pipeline run",
		zap.String("topic", req.Topic),
		zap.String("method", method.String()),
		zap.String("notebooklm", avail.NotebookLM.String()),
		zap.Bool("hosted_llm", avail.DeepSeek))

	// The browser is only launched when something will drive it.
	var manager *browser.Manager
	needsBrowser := avail.NotebookLMAvailable() || cfg.Collector.UseBrowser
	shutdown := func() error { return nil }
	if needsBrowser {
		manager = browser.NewManager(cfg.Browser)
		if err := manager.Start(ctx); err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		shutdown = manager.Shutdown
	}

	var fetcher collector.Fetcher
	if cfg.Collector.UseBrowser {
		fetcher = collector.NewRenderedFetcher(manager)
	} else {
		fetcher = collector.NewStaticFetcher(cfg.Collector, cfg.FetchTimeout())
	}
	col := collector.New(fetcher, cfg.Collector.MaxConcurrent)

	strategy, err := chunker.ParseStrategy(cfg.Chunker.Strategy)
	if err != nil {
		return err
	}
	splitter := chunker.New(strategy, cfg.Chunker.MaxTokens)

	var driver notebooklm.Driver
	if avail.NotebookLMAvailable() {
		driver = notebooklm.NewRodDriver(manager, cfg.Browser)
	}
	synth, err := llm.NewClient(cfg.AI)
	if err != nil {
		return err
	}

	registry := pipeline.NewRegistry()
	runner := pipeline.NewRunner(
		openRouter(store, method), col, splitter, driver, synth, avail, registry, shutdown)

	run, err := runner.Execute(ctx, req, method, runURLs)
	status, _ := registry.Status(run.ID)
	for _, line := range status.Logs {
		logger.Debug(line)
	}

	switch run.State {
	case pipeline.StateDone:
		fmt.Println(run.Report)
		return nil
	case pipeline.StateAwaitingManualAction:
		fmt.Println(run.Guided.Render())
		return nil
	default:
		return fmt.Errorf("run %s failed (%s): %v", run.ID, run.Tag, err)
	}
}

// refreshDiscovery re-scrapes sources for a topic and overwrites the cache.
func refreshDiscovery(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	method, err := discovery.ParseMethod(discoverMethod)
	if err != nil {
		return err
	}
	if method != discovery.MethodGoogle && method != discovery.MethodDuckDuckGo {
		return fmt.Errorf("discover requires a search method, got %q", discoverMethod)
	}

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open discovery cache: %w", err)
	}
	defer store.Close()

	req := buildRequest(args)
	urls, err := openRouter(store, method).RefreshCache(ctx, req, method)
	if err != nil {
		return err
	}
	fmt.Printf("Cached %d sources for %q:\n", len(urls), req.Topic)
	for _, u := range urls {
		fmt.Println("  " + u)
	}
	return nil
}

func showCache(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open discovery cache: %w", err)
	}
	defer store.Close()

	req := buildRequest(args)
	fp := discovery.Fingerprint(req)
	entry, ok, err := store.Get(fp)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("No cache entry for %q (fingerprint %s)\n", req.Topic, fp)
		return nil
	}
	fmt.Printf("Topic %q (fingerprint %s), discovered %s:\n",
		req.Topic, fp, entry.DiscoveredAt.Format("2006-01-02 15:04:05"))
	for _, u := range entry.URLs {
		fmt.Println("  " + u)
	}
	return nil
}

func clearCache(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open discovery cache: %w", err)
	}
	defer store.Close()

	if len(args) == 0 {
		if err := store.Delete(""); err != nil {
			return err
		}
		fmt.Println("Discovery cache cleared")
		return nil
	}

	req := buildRequest(args)
	if err := store.Delete(discovery.Fingerprint(req)); err != nil {
		return err
	}
	fmt.Printf("Cleared cache entry for %q\n", req.Topic)
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	avail := cfg.AI.Availability()
	fmt.Printf("crawler %s\n\n", version)
	fmt.Printf("Workspace:        %s\n", cfg.Workspace)
	fmt.Printf("Discovery method: %s\n", cfg.Discovery.Method)
	fmt.Printf("Cache backend:    %s (%s)\n", cfg.Discovery.CacheBackend, cfg.CachePathAbs())
	fmt.Printf("NotebookLM:       %s\n", avail.NotebookLM)
	fmt.Printf("Hosted LLM:       enabled=%v provider=%s model=%s key=%v\n",
		avail.DeepSeek, cfg.AI.Provider, cfg.AI.Model, cfg.AI.APIKey != "")
	fmt.Printf("Chunking:         %s, %d tokens\n", cfg.Chunker.Strategy, cfg.Chunker.MaxTokens)
	fmt.Printf("Collector:        concurrency=%d browser=%v\n", cfg.Collector.MaxConcurrent, cfg.Collector.UseBrowser)
	return nil
}
