package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/chunker"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/collector"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/config"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/discovery"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/llm"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/logging"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/notebooklm"
)

// SourceResolver resolves a request into source URLs.
type SourceResolver interface {
	Resolve(ctx context.Context, req discovery.Request, method discovery.Method, explicitURLs []string) ([]string, error)
}

// ContentCollector fetches and cleans documents.
type ContentCollector interface {
	Collect(ctx context.Context, urls []string) ([]collector.Document, []collector.FetchError, error)
}

// Splitter chunks cleaned documents.
type Splitter interface {
	Split(docs []collector.Document) []chunker.Chunk
}

// Runner executes runs. It is safe for concurrent use; each run gets its own
// record in the registry.
type Runner struct {
	resolver  SourceResolver
	collector ContentCollector
	splitter  Splitter
	driver    notebooklm.Driver
	synth     llm.SynthesisClient
	avail     config.Availability
	registry  *Registry

	// shutdown releases the browser session. Called exactly once per run,
	// on every terminal transition including failures and cancellation.
	shutdown func() error
}

// NewRunner wires the pipeline. driver and synth may be nil when the
// corresponding availability flag is off; the runner never touches a backend
// whose flag is disabled.
func NewRunner(
	resolver SourceResolver,
	col ContentCollector,
	splitter Splitter,
	driver notebooklm.Driver,
	synth llm.SynthesisClient,
	avail config.Availability,
	registry *Registry,
	shutdown func() error,
) *Runner {
	if shutdown == nil {
		shutdown = func() error { return nil }
	}
	return &Runner{
		resolver:  resolver,
		collector: col,
		splitter:  splitter,
		driver:    driver,
		synth:     synth,
		avail:     avail,
		registry:  registry,
		shutdown:  shutdown,
	}
}

// Execute runs the full pipeline for one request. The returned run is
// terminal; inspect State and Tag for the outcome. The error mirrors
// run.Tag for callers that prefer error handling.
func (rn *Runner) Execute(ctx context.Context, req discovery.Request, method discovery.Method, explicitURLs []string) (*Run, error) {
	run := newRun(req, method)
	rn.registry.add(run)
	logging.Pipeline("run %s started: topic=%q method=%s", run.ID, req.Topic, method)

	err := rn.execute(ctx, run, explicitURLs)
	if err != nil {
		rn.fail(run, err)
		return run, err
	}
	return run, nil
}

func (rn *Runner) execute(ctx context.Context, run *Run, explicitURLs []string) error {
	// The router rejects blank topics for the methods it handles, but the
	// NotebookLM method never reaches it. Check here so every path agrees.
	if run.Method != discovery.MethodDirect && strings.TrimSpace(run.Request.Topic) == "" {
		return fmt.Errorf("method %s requires a non-empty topic", run.Method)
	}

	// No backend at all means nothing downstream could consume the crawl.
	// Fail before any network work is spent. Guided mode counts as a
	// backend: the user is the automation.
	if rn.avail.NotebookLM == config.AIModeDisabled && !rn.avail.DeepSeek {
		return fmt.Errorf("notebooklm and hosted llm both disabled: %w", errNoAIBackend)
	}

	if run.Method == discovery.MethodNotebookLM {
		return rn.runNotebookLMDiscovery(ctx, run)
	}

	run.setState(StateSourceResolution)
	urls, err := rn.resolver.Resolve(ctx, run.Request, run.Method, explicitURLs)
	if err != nil {
		return err
	}
	run.mu.Lock()
	run.URLs = urls
	run.mu.Unlock()
	run.logf("resolved %d sources via %s", len(urls), run.Method)

	run.setState(StateContentAIProcessing)
	docs, failures, err := rn.collector.Collect(ctx, urls)
	if err != nil {
		return err
	}
	for _, f := range failures {
		run.logf("fetch failed: %s: %v", f.URL, f.Err)
		logging.PipelineDebug("run %s: fetch failed: %s: %v", run.ID, f.URL, f.Err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("all %d sources failed: %w", len(urls), collector.ErrFetchFailed)
	}

	chunks := rn.splitter.Split(docs)
	if len(chunks) == 0 {
		return fmt.Errorf("no usable content after cleaning: %w", collector.ErrFetchFailed)
	}
	run.mu.Lock()
	run.Chunks = chunks
	run.mu.Unlock()
	run.logf("chunked %d documents into %d chunks", len(docs), len(chunks))

	return rn.route(ctx, run, chunks)
}

// runNotebookLMDiscovery handles the NotebookLM discovery method: no URL
// resolution and no collection, NotebookLM searches the web itself.
func (rn *Runner) runNotebookLMDiscovery(ctx context.Context, run *Run) error {
	if rn.avail.NotebookLM == config.AIModeDisabled {
		return fmt.Errorf("notebooklm method requires notebooklm: %w", errNoAIBackend)
	}

	if rn.avail.NotebookLMGuided() {
		payload := notebooklm.GuidedDiscovery(run.Request)
		rn.awaitManual(run, &payload)
		return nil
	}

	run.setState(StateNotebookLMDiscovery)
	report, err := rn.driver.DiscoverSources(ctx, run.Request)
	if err != nil {
		return err
	}
	rn.complete(run, report)
	return nil
}

// route sends collected chunks down the AI path. NotebookLM, when enabled,
// always runs before the hosted model; the hosted model always produces the
// final report. Backends are never substituted for one another.
func (rn *Runner) route(ctx context.Context, run *Run, chunks []chunker.Chunk) error {
	if rn.avail.NotebookLMGuided() {
		payload := notebooklm.GuidedUpload(run.Request, chunks)
		rn.awaitManual(run, &payload)
		return nil
	}

	if !rn.avail.NotebookLMAvailable() {
		// Direct synthesis. Reachable only with the hosted model enabled,
		// the backend check at the top of execute guarantees it.
		run.setState(StateSynthesizing)
		report, err := rn.synthesize(ctx, run, joinChunks(chunks))
		if err != nil {
			return err
		}
		rn.complete(run, report)
		return nil
	}

	handle, err := rn.driver.UploadChunks(ctx, chunks)
	if err != nil {
		return err
	}
	evidence, err := rn.driver.GenerateEvidence(ctx, handle)
	if err != nil {
		return err
	}
	run.mu.Lock()
	run.Evidence = evidence
	run.mu.Unlock()
	run.logf("evidence digest ready (%d chars)", len(evidence))

	run.setState(StateSynthesizing)
	if !rn.avail.DeepSeek {
		// The evidence work above is preserved on the run record; only the
		// final step is unserviceable.
		return fmt.Errorf("hosted llm disabled, cannot synthesize: %w", llm.ErrMissingCredential)
	}
	report, err := rn.synthesize(ctx, run, evidence)
	if err != nil {
		return err
	}
	rn.complete(run, report)
	return nil
}

// synthesize calls the hosted model, retrying once on transient failure so a
// flaky final step does not discard upstream work. Credential errors and
// cancellation are not retried.
func (rn *Runner) synthesize(ctx context.Context, run *Run, input string) (string, error) {
	instructions := synthesisInstructions(run.Request)
	report, err := rn.synth.Synthesize(ctx, input, instructions)
	if err == nil {
		return report, nil
	}
	if errors.Is(err, llm.ErrMissingCredential) || ctx.Err() != nil {
		return "", err
	}

	run.logf("synthesis failed, retrying once: %v", err)
	logging.Router("run %s: synthesis retry after: %v", run.ID, err)
	return rn.synth.Synthesize(ctx, input, instructions)
}

// complete marks the run done and releases the browser.
func (rn *Runner) complete(run *Run, report string) {
	run.mu.Lock()
	run.Report = report
	run.mu.Unlock()
	run.setState(StateDone)
	rn.release(run)
	logging.Pipeline("run %s done: report %d chars", run.ID, len(report))
}

// awaitManual parks the run for the user and releases the browser; the
// automation owns no further steps.
func (rn *Runner) awaitManual(run *Run, payload *notebooklm.GuidedPayload) {
	run.mu.Lock()
	run.Guided = payload
	run.Tag = TagAwaitingManualAction
	run.Message = "manual NotebookLM steps required"
	run.mu.Unlock()
	run.setState(StateAwaitingManualAction)
	rn.release(run)
	logging.Pipeline("run %s awaiting manual action (%d steps)", run.ID, len(payload.Steps))
}

// fail records the failure cause and releases resources.
func (rn *Runner) fail(run *Run, err error) {
	tag := classify(err)
	run.mu.Lock()
	run.Tag = tag
	run.Message = err.Error()
	run.mu.Unlock()
	run.setState(StateFailed)
	rn.release(run)
	logging.PipelineError("run %s failed (%s): %v", run.ID, tag, err)
}

// release tears the browser down. Idempotent via Manager.Shutdown.
func (rn *Runner) release(run *Run) {
	if err := rn.shutdown(); err != nil {
		run.logf("browser shutdown: %v", err)
		logging.BrowserError("shutdown after run %s: %v", run.ID, err)
	}
}

// classify maps an error to its taxonomy tag.
func classify(err error) Tag {
	switch {
	case err == nil:
		return TagNone
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return TagCancelled
	case errors.Is(err, discovery.ErrNoSourcesFound):
		return TagNoSourcesFound
	case errors.Is(err, collector.ErrFetchFailed):
		return TagFetchFailed
	case errors.Is(err, llm.ErrMissingCredential):
		return TagMissingCredential
	case errors.Is(err, notebooklm.ErrDriverTimeout):
		return TagDriverTimeout
	case errors.Is(err, errNoAIBackend):
		return TagNoAIBackendConfigured
	default:
		return TagInternal
	}
}

var errNoAIBackend = errors.New("no ai backend configured")

func synthesisInstructions(req discovery.Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are preparing a study report on %q", req.Topic)
	if req.Subject != "" {
		fmt.Fprintf(&sb, " (%s)", req.Subject)
	}
	if req.Grade != "" {
		fmt.Fprintf(&sb, " for grade %s students", req.Grade)
	}
	sb.WriteString(". Structure the report with an overview, key concepts, worked examples, and a summary. ")
	sb.WriteString("Use only the provided material; do not invent facts.")
	if req.Subtopics != "" {
		sb.WriteString(" Make sure these subtopics are covered: " + req.Subtopics + ".")
	}
	return sb.String()
}

func joinChunks(chunks []chunker.Chunk) string {
	var sb strings.Builder
	lastSource := ""
	for _, ch := range chunks {
		if ch.SourceURL != lastSource {
			if lastSource != "" {
				sb.WriteString("\n")
			}
			sb.WriteString("Source: " + ch.SourceURL + "\n\n")
			lastSource = ch.SourceURL
		}
		sb.WriteString(ch.Text)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}
