package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/chunker"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/collector"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/config"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/discovery"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/llm"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/notebooklm"
)

func TestMain(m *testing.M) {
	// opencensus spawns a worker goroutine from package init (via the genai
	// dependency chain) that can never be stopped; ignore it so goleak only
	// flags goroutines leaked by this package.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type fakeResolver struct {
	urls  []string
	err   error
	calls atomic.Int32
}

func (f *fakeResolver) Resolve(_ context.Context, _ discovery.Request, _ discovery.Method, _ []string) ([]string, error) {
	f.calls.Add(1)
	return f.urls, f.err
}

type fakeCollector struct {
	docs     []collector.Document
	failures []collector.FetchError
	err      error
	calls    atomic.Int32
}

func (f *fakeCollector) Collect(_ context.Context, _ []string) ([]collector.Document, []collector.FetchError, error) {
	f.calls.Add(1)
	return f.docs, f.failures, f.err
}

type fakeSplitter struct {
	chunks []chunker.Chunk
}

func (f *fakeSplitter) Split(_ []collector.Document) []chunker.Chunk {
	return f.chunks
}

type fakeDriver struct {
	report      string
	evidence    string
	discoverErr error
	uploadErr   error
	evidenceErr error

	discoverCalls atomic.Int32
	uploadCalls   atomic.Int32
	evidenceCalls atomic.Int32
}

func (f *fakeDriver) DiscoverSources(_ context.Context, _ discovery.Request) (string, error) {
	f.discoverCalls.Add(1)
	return f.report, f.discoverErr
}

func (f *fakeDriver) UploadChunks(_ context.Context, _ []chunker.Chunk) (notebooklm.SessionHandle, error) {
	f.uploadCalls.Add(1)
	return "session-1", f.uploadErr
}

func (f *fakeDriver) GenerateEvidence(_ context.Context, _ notebooklm.SessionHandle) (string, error) {
	f.evidenceCalls.Add(1)
	return f.evidence, f.evidenceErr
}

type fakeSynth struct {
	report string
	errs   []error // consumed per call; nil entry means success
	calls  atomic.Int32

	mu        sync.Mutex
	lastInput string
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(_ context.Context, input, _ string) (string, error) {
	f.mu.Lock()
	f.lastInput = input
	f.mu.Unlock()
	n := int(f.calls.Add(1))
	if n <= len(f.errs) && f.errs[n-1] != nil {
		return "", f.errs[n-1]
	}
	return f.report, nil
}

type fixture struct {
	resolver  *fakeResolver
	collector *fakeCollector
	splitter  *fakeSplitter
	driver    *fakeDriver
	synth     *fakeSynth
	registry  *Registry
	shutdowns atomic.Int32
}

func newFixture() *fixture {
	return &fixture{
		resolver: &fakeResolver{urls: []string{"https://a.example", "https://b.example"}},
		collector: &fakeCollector{docs: []collector.Document{
			{URL: "https://a.example", Text: "Forces act on bodies."},
			{URL: "https://b.example", Text: "Pressure is force per area."},
		}},
		splitter: &fakeSplitter{chunks: []chunker.Chunk{
			{SourceURL: "https://a.example", Ordinal: 0, Text: "Forces act on bodies.", ApproxTokens: 5},
			{SourceURL: "https://b.example", Ordinal: 0, Text: "Pressure is force per area.", ApproxTokens: 6},
		}},
		driver:   &fakeDriver{report: "nblm report", evidence: "evidence digest"},
		synth:    &fakeSynth{report: "final report"},
		registry: NewRegistry(),
	}
}

func (f *fixture) runner(avail config.Availability) *Runner {
	return NewRunner(f.resolver, f.collector, f.splitter, f.driver, f.synth, avail, f.registry,
		func() error { f.shutdowns.Add(1); return nil })
}

func req() discovery.Request {
	return discovery.Request{Topic: "Force and Pressure", Grade: "8", Subject: "Physics"}
}

func automated() config.Availability {
	return config.Availability{NotebookLM: config.AIModeAutomated, DeepSeek: true}
}

func TestExecute_FullAutomatedPath(t *testing.T) {
	f := newFixture()
	run, err := f.runner(automated()).Execute(context.Background(), req(), discovery.MethodDirect, []string{"https://a.example", "https://b.example"})

	require.NoError(t, err)
	assert.Equal(t, StateDone, run.State)
	assert.Equal(t, "final report", run.Report)
	assert.Equal(t, "evidence digest", run.Evidence)
	assert.Equal(t, "evidence digest", f.synth.lastInput,
		"the evidence, not the raw chunks, feeds synthesis")
	assert.Equal(t, int32(1), f.driver.uploadCalls.Load())
	assert.Equal(t, int32(1), f.driver.evidenceCalls.Load())
	assert.Equal(t, int32(1), f.synth.calls.Load())
	assert.Equal(t, int32(1), f.shutdowns.Load(), "browser released exactly once")

	status, err := f.registry.Status(run.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDone, status.State)
	assert.Equal(t, "done", status.Progress)
	assert.NotEmpty(t, status.Logs)
}

func TestExecute_NotebookLMMethod(t *testing.T) {
	t.Run("automated discovery produces the report", func(t *testing.T) {
		f := newFixture()
		run, err := f.runner(automated()).Execute(context.Background(), req(), discovery.MethodNotebookLM, nil)

		require.NoError(t, err)
		assert.Equal(t, StateDone, run.State)
		assert.Equal(t, "nblm report", run.Report)
		assert.Zero(t, f.resolver.calls.Load(), "discovery method skips URL resolution")
		assert.Zero(t, f.collector.calls.Load())
		assert.Zero(t, f.synth.calls.Load(), "notebooklm discovery is self-contained")
		assert.Equal(t, int32(1), f.shutdowns.Load())
	})

	t.Run("guided mode parks the run with instructions", func(t *testing.T) {
		f := newFixture()
		avail := config.Availability{NotebookLM: config.AIModeGuided, DeepSeek: true}
		run, err := f.runner(avail).Execute(context.Background(), req(), discovery.MethodNotebookLM, nil)

		require.NoError(t, err)
		assert.Equal(t, StateAwaitingManualAction, run.State)
		assert.Equal(t, TagAwaitingManualAction, run.Tag)
		require.NotNil(t, run.Guided)
		assert.NotEmpty(t, run.Guided.Steps)
		assert.Zero(t, f.driver.discoverCalls.Load(), "guided mode never drives the browser")
		assert.Equal(t, int32(1), f.shutdowns.Load())
	})

	t.Run("notebooklm disabled fails the method", func(t *testing.T) {
		f := newFixture()
		avail := config.Availability{NotebookLM: config.AIModeDisabled, DeepSeek: true}
		run, err := f.runner(avail).Execute(context.Background(), req(), discovery.MethodNotebookLM, nil)

		require.Error(t, err)
		assert.Equal(t, StateFailed, run.State)
		assert.Equal(t, TagNoAIBackendConfigured, run.Tag)
	})
}

func TestExecute_BlankTopicRejected(t *testing.T) {
	t.Run("notebooklm method never reaches the driver", func(t *testing.T) {
		f := newFixture()
		blank := discovery.Request{Topic: "   ", Grade: "8"}
		run, err := f.runner(automated()).Execute(context.Background(), blank, discovery.MethodNotebookLM, nil)

		require.Error(t, err)
		assert.Equal(t, StateFailed, run.State)
		assert.Zero(t, f.driver.discoverCalls.Load())
		assert.Equal(t, int32(1), f.shutdowns.Load())
	})

	t.Run("search methods never reach the resolver", func(t *testing.T) {
		f := newFixture()
		blank := discovery.Request{Topic: "", Grade: "8"}
		run, err := f.runner(automated()).Execute(context.Background(), blank, discovery.MethodGoogle, nil)

		require.Error(t, err)
		assert.Equal(t, StateFailed, run.State)
		assert.Zero(t, f.resolver.calls.Load())
	})

	t.Run("direct method works without a topic", func(t *testing.T) {
		f := newFixture()
		blank := discovery.Request{Topic: "", Grade: "8"}
		run, err := f.runner(automated()).Execute(context.Background(), blank, discovery.MethodDirect, f.resolver.urls)

		require.NoError(t, err)
		assert.Equal(t, StateDone, run.State)
	})
}

func TestExecute_GuidedUploadPath(t *testing.T) {
	f := newFixture()
	avail := config.Availability{NotebookLM: config.AIModeGuided, DeepSeek: false}
	run, err := f.runner(avail).Execute(context.Background(), req(), discovery.MethodDirect, f.resolver.urls)

	require.NoError(t, err)
	assert.Equal(t, StateAwaitingManualAction, run.State)
	require.NotNil(t, run.Guided)
	assert.Len(t, run.Guided.Sources, 2)
	assert.Zero(t, f.driver.uploadCalls.Load())
	assert.Zero(t, f.synth.calls.Load())
}

func TestExecute_NoBackendFailsBeforeNetwork(t *testing.T) {
	f := newFixture()
	avail := config.Availability{NotebookLM: config.AIModeDisabled, DeepSeek: false}
	run, err := f.runner(avail).Execute(context.Background(), req(), discovery.MethodGoogle, nil)

	require.Error(t, err)
	assert.Equal(t, StateFailed, run.State)
	assert.Equal(t, TagNoAIBackendConfigured, run.Tag)
	assert.Zero(t, f.resolver.calls.Load(), "must fail before any resolution or fetching")
	assert.Zero(t, f.collector.calls.Load())
	assert.Equal(t, int32(1), f.shutdowns.Load())
}

func TestExecute_HostedDisabledFailsAtSynthesisOnly(t *testing.T) {
	// NotebookLM on, hosted model off: upload and evidence still run, the
	// failure surfaces at the synthesis step with the evidence preserved.
	f := newFixture()
	avail := config.Availability{NotebookLM: config.AIModeAutomated, DeepSeek: false}
	run, err := f.runner(avail).Execute(context.Background(), req(), discovery.MethodDirect, f.resolver.urls)

	require.Error(t, err)
	assert.Equal(t, StateFailed, run.State)
	assert.Equal(t, TagMissingCredential, run.Tag)
	assert.Equal(t, int32(1), f.driver.uploadCalls.Load())
	assert.Equal(t, int32(1), f.driver.evidenceCalls.Load())
	assert.Equal(t, "evidence digest", run.Evidence, "evidence survives the failed synthesis")
	assert.Zero(t, f.synth.calls.Load(), "no network call without a usable backend")
}

func TestExecute_DirectSynthesisWhenNotebookLMOff(t *testing.T) {
	f := newFixture()
	avail := config.Availability{NotebookLM: config.AIModeDisabled, DeepSeek: true}
	run, err := f.runner(avail).Execute(context.Background(), req(), discovery.MethodDirect, f.resolver.urls)

	require.NoError(t, err)
	assert.Equal(t, StateDone, run.State)
	assert.Equal(t, "final report", run.Report)
	assert.Zero(t, f.driver.uploadCalls.Load(), "no silent fallback into notebooklm")
	assert.Equal(t, int32(1), f.synth.calls.Load())
	assert.Contains(t, f.synth.lastInput, "Forces act on bodies.",
		"raw chunk text reaches synthesis directly")
	assert.NotContains(t, f.synth.lastInput, "evidence")
}

func TestExecute_SynthesisRetry(t *testing.T) {
	t.Run("retries once after transient failure", func(t *testing.T) {
		f := newFixture()
		f.synth.errs = []error{errors.New("upstream hiccup")}
		run, err := f.runner(automated()).Execute(context.Background(), req(), discovery.MethodDirect, f.resolver.urls)

		require.NoError(t, err)
		assert.Equal(t, StateDone, run.State)
		assert.Equal(t, int32(2), f.synth.calls.Load())
		assert.Equal(t, int32(1), f.driver.evidenceCalls.Load(), "evidence generation is not redone")
	})

	t.Run("gives up after the second failure", func(t *testing.T) {
		f := newFixture()
		f.synth.errs = []error{errors.New("hiccup one"), errors.New("hiccup two")}
		run, err := f.runner(automated()).Execute(context.Background(), req(), discovery.MethodDirect, f.resolver.urls)

		require.Error(t, err)
		assert.Equal(t, StateFailed, run.State)
		assert.Equal(t, TagInternal, run.Tag)
		assert.Equal(t, int32(2), f.synth.calls.Load())
	})

	t.Run("credential errors are not retried", func(t *testing.T) {
		f := newFixture()
		f.synth.errs = []error{fmt.Errorf("deepseek: %w", llm.ErrMissingCredential)}
		run, err := f.runner(automated()).Execute(context.Background(), req(), discovery.MethodDirect, f.resolver.urls)

		require.Error(t, err)
		assert.Equal(t, TagMissingCredential, run.Tag)
		assert.Equal(t, int32(1), f.synth.calls.Load())
	})
}

func TestExecute_FailureTaxonomy(t *testing.T) {
	t.Run("no sources found", func(t *testing.T) {
		f := newFixture()
		f.resolver.urls = nil
		f.resolver.err = fmt.Errorf("auto cache miss: %w", discovery.ErrNoSourcesFound)
		run, err := f.runner(automated()).Execute(context.Background(), req(), discovery.MethodAuto, nil)

		require.Error(t, err)
		assert.Equal(t, TagNoSourcesFound, run.Tag)
		assert.Zero(t, f.collector.calls.Load())
	})

	t.Run("all fetches failed", func(t *testing.T) {
		f := newFixture()
		f.collector.docs = nil
		f.collector.failures = []collector.FetchError{
			{URL: "https://a.example", Err: errors.New("status 503")},
			{URL: "https://b.example", Err: errors.New("status 404")},
		}
		run, err := f.runner(automated()).Execute(context.Background(), req(), discovery.MethodDirect, f.resolver.urls)

		require.Error(t, err)
		assert.Equal(t, TagFetchFailed, run.Tag)
	})

	t.Run("partial fetch failure continues", func(t *testing.T) {
		f := newFixture()
		f.collector.docs = f.collector.docs[:1]
		f.collector.failures = []collector.FetchError{{URL: "https://b.example", Err: errors.New("status 404")}}
		run, err := f.runner(automated()).Execute(context.Background(), req(), discovery.MethodDirect, f.resolver.urls)

		require.NoError(t, err)
		assert.Equal(t, StateDone, run.State)
	})

	t.Run("driver timeout", func(t *testing.T) {
		f := newFixture()
		f.driver.uploadErr = fmt.Errorf("paste source: %w", notebooklm.ErrDriverTimeout)
		run, err := f.runner(automated()).Execute(context.Background(), req(), discovery.MethodDirect, f.resolver.urls)

		require.Error(t, err)
		assert.Equal(t, TagDriverTimeout, run.Tag)
		assert.Equal(t, int32(1), f.shutdowns.Load(), "browser released on failure too")
	})

	t.Run("cancellation", func(t *testing.T) {
		f := newFixture()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		f.resolver.err = ctx.Err()
		run, err := f.runner(automated()).Execute(ctx, req(), discovery.MethodDirect, f.resolver.urls)

		require.Error(t, err)
		assert.Equal(t, TagCancelled, run.Tag)
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Status("nope")
	assert.Error(t, err)

	a := newRun(req(), discovery.MethodAuto)
	reg.add(a)
	a.setState(StateSourceResolution)

	status, err := reg.Status(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StateSourceResolution, status.State)
	assert.Equal(t, "resolving sources", status.Progress)

	b := newRun(req(), discovery.MethodDirect)
	reg.add(b)
	list := reg.List()
	require.Len(t, list, 2)
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateAwaitingManualAction.Terminal())
	assert.False(t, StateSynthesizing.Terminal())
	assert.False(t, StateIdle.Terminal())
}

func TestJoinChunks(t *testing.T) {
	out := joinChunks([]chunker.Chunk{
		{SourceURL: "https://a.example", Text: "one"},
		{SourceURL: "https://a.example", Text: "two"},
		{SourceURL: "https://b.example", Text: "three"},
	})
	assert.Contains(t, out, "Source: https://a.example")
	assert.Contains(t, out, "Source: https://b.example")
	assert.Less(t, strings.Index(out, "one"), strings.Index(out, "two"))
	assert.Less(t, strings.Index(out, "two"), strings.Index(out, "three"))
}
