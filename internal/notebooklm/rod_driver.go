package notebooklm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/browser"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/chunker"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/config"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/discovery"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/logging"
)

const notebookLMURL = "https://notebooklm.google.com"

// UI selectors, grouped so a NotebookLM redesign is a one-file fix.
const (
	selNewNotebook     = `button[aria-label="Create new notebook"], button.create-new-button`
	selDiscoverSources = `button[aria-label="Discover sources"], mat-chip[data-test-id="discover-sources"]`
	selDiscoverInput   = `textarea[aria-label="Describe what you're interested in"], textarea.discover-input`
	selDiscoverSubmit  = `button[aria-label="Submit"], button[type="submit"]`
	selAddSource       = `button[aria-label="Add source"], button.add-source-button`
	selPasteTextOption = `span[data-test-id="copied-text"], mat-chip[aria-label="Copied text"]`
	selPasteTextArea   = `textarea[aria-label="Paste text"], textarea.paste-text-input`
	selPasteInsert     = `button[aria-label="Insert"], button.insert-button`
	selChatInput       = `textarea[aria-label="Query box"], textarea.query-box-input`
	selChatSend        = `button[aria-label="Submit"], button.submit-button`
	selChatResponse    = `chat-message .message-content, .chat-message-content`
	selSourceList      = `.source-list-item, mat-list-item.source-item`
)

// RodDriver drives the NotebookLM UI through the owned browser session.
type RodDriver struct {
	manager *browser.Manager
	cfg     config.BrowserConfig

	mu       sync.Mutex
	sessions map[SessionHandle]*rod.Page
}

// NewRodDriver builds a driver on top of an existing browser manager. The
// manager (and thus every page this driver opens) is torn down by the
// pipeline on terminal transitions; the driver never owns the browser.
func NewRodDriver(manager *browser.Manager, cfg config.BrowserConfig) *RodDriver {
	return &RodDriver{
		manager:  manager,
		cfg:      cfg,
		sessions: make(map[SessionHandle]*rod.Page),
	}
}

// step runs one automation action under the per-step deadline, mapping a
// deadline expiry to ErrDriverTimeout.
func (d *RodDriver) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, d.cfg.StepTimeout())
	defer cancel()

	logging.NotebookLMDebug("step: %s", name)
	err := fn(stepCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%s: %w", name, ErrDriverTimeout)
	}
	return fmt.Errorf("%s: %w", name, err)
}

// DiscoverSources implements Driver. NotebookLM's own "discover sources"
// flow searches the web for the topic; the resulting notebook is asked for a
// study report which becomes the final artifact.
func (d *RodDriver) DiscoverSources(ctx context.Context, req discovery.Request) (string, error) {
	page, err := d.openNotebook(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = page.Close() }()

	query := discoverQuery(req)
	if err := d.step(ctx, "discover sources", func(sc context.Context) error {
		p := page.Context(sc)
		btn, err := p.Element(selDiscoverSources)
		if err != nil {
			return err
		}
		if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return err
		}
		input, err := p.Element(selDiscoverInput)
		if err != nil {
			return err
		}
		if err := input.Input(query); err != nil {
			return err
		}
		submit, err := p.Element(selDiscoverSubmit)
		if err != nil {
			return err
		}
		return submit.Click(proto.InputMouseButtonLeft, 1)
	}); err != nil {
		return "", err
	}

	// Source import is the slowest part of the flow; poll until at least one
	// source lands or the step deadline fires.
	if err := d.step(ctx, "wait for discovered sources", func(sc context.Context) error {
		p := page.Context(sc)
		for {
			if els, err := p.Elements(selSourceList); err == nil && len(els) > 0 {
				return nil
			}
			select {
			case <-sc.Done():
				return sc.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}); err != nil {
		return "", err
	}

	report, err := d.ask(ctx, page, reportPrompt(req))
	if err != nil {
		return "", err
	}
	logging.NotebookLM("discovery report ready (%d chars) for %q", len(report), req.Topic)
	return report, nil
}

// UploadChunks implements Driver. Chunks are pasted as copied-text sources,
// one source document per URL, in ascending ordinal order.
func (d *RodDriver) UploadChunks(ctx context.Context, chunks []chunker.Chunk) (SessionHandle, error) {
	if len(chunks) == 0 {
		return "", errors.New("no chunks to upload")
	}

	page, err := d.openNotebook(ctx)
	if err != nil {
		return "", err
	}

	for _, group := range groupBySource(chunks) {
		if err := d.step(ctx, "paste source "+group.url, func(sc context.Context) error {
			p := page.Context(sc)
			add, err := p.Element(selAddSource)
			if err != nil {
				return err
			}
			if err := add.Click(proto.InputMouseButtonLeft, 1); err != nil {
				return err
			}
			opt, err := p.Element(selPasteTextOption)
			if err != nil {
				return err
			}
			if err := opt.Click(proto.InputMouseButtonLeft, 1); err != nil {
				return err
			}
			area, err := p.Element(selPasteTextArea)
			if err != nil {
				return err
			}
			if err := area.Input(group.text); err != nil {
				return err
			}
			insert, err := p.Element(selPasteInsert)
			if err != nil {
				return err
			}
			return insert.Click(proto.InputMouseButtonLeft, 1)
		}); err != nil {
			_ = page.Close()
			return "", err
		}
	}

	handle := SessionHandle(uuid.NewString())
	d.mu.Lock()
	d.sessions[handle] = page
	d.mu.Unlock()

	logging.NotebookLM("uploaded %d chunks across %d sources (session %s)",
		len(chunks), len(groupBySource(chunks)), handle)
	return handle, nil
}

// GenerateEvidence implements Driver.
func (d *RodDriver) GenerateEvidence(ctx context.Context, handle SessionHandle) (string, error) {
	d.mu.Lock()
	page, ok := d.sessions[handle]
	d.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown notebooklm session %q", handle)
	}

	evidence, err := d.ask(ctx, page, evidencePrompt)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	delete(d.sessions, handle)
	d.mu.Unlock()
	_ = page.Close()

	logging.NotebookLM("evidence ready (%d chars) for session %s", len(evidence), handle)
	return evidence, nil
}

// openNotebook navigates to NotebookLM and creates a fresh notebook.
func (d *RodDriver) openNotebook(ctx context.Context) (*rod.Page, error) {
	page, err := d.manager.Page(ctx, notebookLMURL)
	if err != nil {
		return nil, err
	}
	if err := d.step(ctx, "create notebook", func(sc context.Context) error {
		p := page.Context(sc)
		if err := p.WaitLoad(); err != nil {
			return err
		}
		btn, err := p.Element(selNewNotebook)
		if err != nil {
			return err
		}
		return btn.Click(proto.InputMouseButtonLeft, 1)
	}); err != nil {
		_ = page.Close()
		return nil, err
	}
	return page, nil
}

// ask submits a chat query and waits for the response text to stabilize.
func (d *RodDriver) ask(ctx context.Context, page *rod.Page, prompt string) (string, error) {
	var response string
	err := d.step(ctx, "chat query", func(sc context.Context) error {
		p := page.Context(sc)
		input, err := p.Element(selChatInput)
		if err != nil {
			return err
		}
		if err := input.Input(prompt); err != nil {
			return err
		}
		send, err := p.Element(selChatSend)
		if err != nil {
			return err
		}
		if err := send.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return err
		}

		// Streaming output: poll until the last message stops growing.
		last := ""
		stable := 0
		for {
			select {
			case <-sc.Done():
				return sc.Err()
			case <-time.After(2 * time.Second):
			}
			els, err := p.Elements(selChatResponse)
			if err != nil || len(els) == 0 {
				continue
			}
			text, err := els[len(els)-1].Text()
			if err != nil {
				continue
			}
			if text == last && text != "" {
				stable++
				if stable >= 2 {
					response = text
					return nil
				}
			} else {
				stable = 0
			}
			last = text
		}
	})
	return response, err
}

type sourceGroup struct {
	url  string
	text string
}

// groupBySource joins each source's chunks (ascending ordinal) into one
// paste body, keeping sources in first-seen order.
func groupBySource(chunks []chunker.Chunk) []sourceGroup {
	order := make([]string, 0)
	bySource := make(map[string][]chunker.Chunk)
	for _, ch := range chunks {
		if _, ok := bySource[ch.SourceURL]; !ok {
			order = append(order, ch.SourceURL)
		}
		bySource[ch.SourceURL] = append(bySource[ch.SourceURL], ch)
	}

	groups := make([]sourceGroup, 0, len(order))
	for _, url := range order {
		list := bySource[url]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Ordinal < list[j].Ordinal })

		var sb strings.Builder
		sb.WriteString("Source: " + url + "\n\n")
		for _, ch := range list {
			sb.WriteString(ch.Text)
			sb.WriteString("\n\n")
		}
		groups = append(groups, sourceGroup{url: url, text: strings.TrimSpace(sb.String())})
	}
	return groups
}

func discoverQuery(req discovery.Request) string {
	var sb strings.Builder
	sb.WriteString(req.Topic)
	if req.Subject != "" {
		sb.WriteString(" (" + req.Subject + ")")
	}
	if req.Grade != "" {
		sb.WriteString(" for grade " + req.Grade + " students")
	}
	if req.Subtopics != "" {
		sb.WriteString(", covering: " + req.Subtopics)
	}
	return sb.String()
}

func reportPrompt(req discovery.Request) string {
	return fmt.Sprintf(
		"Write a structured study report on %q suitable for grade %s. "+
			"Cover the key concepts, definitions, worked examples, and common misconceptions found in the sources.",
		req.Topic, req.Grade)
}

const evidencePrompt = "Summarize the key factual evidence from all sources as a structured digest: " +
	"core definitions, laws/formulas, examples, and notable data points. Cite which source each point came from."
