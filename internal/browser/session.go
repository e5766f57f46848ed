// Package browser owns the automated Chrome instance used by the collector
// and the NotebookLM driver. One Manager belongs to exactly one pipeline run;
// concurrent runs must each acquire their own Manager or serialize.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/config"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/logging"
)

// Manager owns a Chrome instance and hands out pages.
type Manager struct {
	cfg config.BrowserConfig

	mu         sync.Mutex
	browser    *rod.Browser
	controlURL string
	launched   bool // we started Chrome ourselves and must kill it
}

// NewManager creates a manager; Chrome is not started until Start or the
// first page request.
func NewManager(cfg config.BrowserConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Start connects to an existing Chrome (debugger_url) or launches a new one.
// Idempotent while the connection stays healthy.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("stale browser connection, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		url, err := m.launch()
		if err != nil {
			return err
		}
		controlURL = url
		m.launched = true
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = b
	m.controlURL = controlURL
	logging.Browser("browser connected (headless=%v)", m.cfg.Headless)
	return nil
}

func (m *Manager) launch() (string, error) {
	l := launcher.New().Headless(m.cfg.Headless)
	if m.cfg.Bin != "" {
		bin, extra, _ := strings.Cut(m.cfg.Bin, " ")
		l = l.Bin(bin)
		for _, rawFlag := range strings.Fields(extra) {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
	}
	url, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch chrome: %w", err)
	}
	return url, nil
}

// Page opens a new page in an incognito context and navigates it.
func (m *Manager) Page(ctx context.Context, url string) (*rod.Page, error) {
	if err := m.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	b := m.browser
	m.mu.Unlock()
	if b == nil {
		return nil, errors.New("browser not connected")
	}

	incognito, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.viewportWidth(),
		Height:            m.viewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.BrowserWarn("failed to set viewport: %v", err)
	}

	if err := page.Context(ctx).Timeout(m.cfg.NavigationTimeout()).Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	return page, nil
}

// RenderedHTML navigates to url, waits for the page to settle, and returns
// the rendered DOM serialization. Used for JavaScript-dependent pages where a
// static GET would return an empty shell.
func (m *Manager) RenderedHTML(ctx context.Context, url string) (string, error) {
	page, err := m.Page(ctx, url)
	if err != nil {
		return "", err
	}
	defer func() { _ = page.Close() }()

	p := page.Context(ctx).Timeout(m.cfg.NavigationTimeout())
	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load %s: %w", url, err)
	}
	// Give client-side rendering a moment to paint content.
	_ = p.WaitIdle(2 * time.Second)

	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("read dom %s: %w", url, err)
	}
	return html, nil
}

// IsConnected reports whether a browser connection is live.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil
}

// Shutdown tears the browser down. Safe to call multiple times; called on
// every terminal pipeline transition so the session never dangles.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil {
		return nil
	}
	err := m.browser.Close()
	m.browser = nil
	m.controlURL = ""
	logging.Browser("browser shut down")
	return err
}

func (m *Manager) viewportWidth() int {
	if m.cfg.ViewportWidth <= 0 {
		return 1920
	}
	return m.cfg.ViewportWidth
}

func (m *Manager) viewportHeight() int {
	if m.cfg.ViewportHeight <= 0 {
		return 1080
	}
	return m.cfg.ViewportHeight
}
