// CLAUDE:SUMMARY Chrome lifecycle for dictionary scraping: lazy launch, stealth pages, serialized visits, page-count recycling.
// Package browser manages the Chrome instance behind the dictionary
// client: launch on first use, one stealth page per visit, resource
// blocking, and a restart after a fixed number of pages so long batch
// runs do not accumulate renderer state.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headful runs Chrome with a real window on an Xvfb display, for
	// when the headless fingerprint gets blocked. Default: headless.
	Headful bool

	// XvfbDisplay for headful mode. Default: ":99".
	XvfbDisplay string

	// RecyclePages restarts Chrome after this many visits.
	// 0 disables recycling. Default: 200.
	RecyclePages int

	// BlockResources lists resource types to abort at the network layer
	// (images, fonts, media, stylesheets). The dictionary pages render
	// their text fine without any of them.
	BlockResources []string

	// NavTimeout bounds one navigation plus render wait. Default: 30s.
	NavTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.RecyclePages == 0 {
		c.RecyclePages = 200
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the Chrome process. Visits are serialized: the dictionary
// is scraped one page at a time, so a single browser with a single live
// page is all the pipeline ever needs.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	visits  int
	closed  bool
}

// NewManager creates a Manager. Chrome is launched lazily on the first
// Visit, so constructing one costs nothing until the pipeline actually
// needs the collaborator.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Visit navigates a fresh stealth page to pageURL, waits for waitSelector
// to appear (the dictionary is a client-rendered app, load alone is not
// enough), and returns the rendered DOM as HTML. The page is closed
// before returning.
func (m *Manager) Visit(ctx context.Context, pageURL, waitSelector string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", fmt.Errorf("browser: manager is closed")
	}
	if err := m.ensureLocked(); err != nil {
		return "", err
	}
	if m.cfg.RecyclePages > 0 && m.visits >= m.cfg.RecyclePages {
		if err := m.recycleLocked(); err != nil {
			return "", err
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavTimeout)
	defer cancel()

	html, err := m.visitOnce(navCtx, pageURL, waitSelector)
	if err != nil {
		return "", err
	}
	m.visits++
	return html, nil
}

// Close shuts down Chrome and Xvfb. The manager cannot be reused after.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanupLocked()
}

func (m *Manager) ensureLocked() error {
	if m.browser != nil {
		return nil
	}
	b, err := m.launch()
	if err != nil {
		return err
	}
	m.browser = b
	m.visits = 0
	return nil
}

func (m *Manager) launch() (*rod.Browser, error) {
	log := m.cfg.Logger

	if m.cfg.Headful {
		if err := m.startXvfb(); err != nil {
			return nil, fmt.Errorf("browser: xvfb: %w", err)
		}
	}

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New()
		if m.cfg.Headful {
			l = l.Headless(false).Env("DISPLAY", m.cfg.XvfbDisplay)
		} else {
			l = l.Headless(true)
		}

		// Anti-detection flags.
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headful", m.cfg.Headful)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	return b, nil
}

func (m *Manager) recycleLocked() error {
	log := m.cfg.Logger
	log.Info("browser: recycling", "visits", m.visits)

	if err := m.cleanupLocked(); err != nil {
		log.Warn("browser: cleanup during recycle", "error", err)
	}
	b, err := m.launch()
	if err != nil {
		return fmt.Errorf("browser: relaunch: %w", err)
	}
	m.browser = b
	m.visits = 0
	return nil
}

func (m *Manager) cleanupLocked() error {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
	return nil
}

// visitOnce does the navigate → wait → snapshot cycle on one page. Rod
// helpers can panic inside CDP plumbing; a recover turns those into
// errors so one bad page cannot take the whole run down.
func (m *Manager) visitOnce(ctx context.Context, pageURL, waitSelector string) (html string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("browser: visit %s: panic: %v", pageURL, r)
		}
	}()

	page, err := stealth.Page(m.browser)
	if err != nil {
		return "", fmt.Errorf("browser: create page: %w", err)
	}
	defer page.Close()

	if len(m.cfg.BlockResources) > 0 {
		if err := blockResources(page, m.cfg.BlockResources); err != nil {
			m.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	if err := page.Context(ctx).Navigate(pageURL); err != nil {
		return "", fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load", "url", pageURL, "error", err)
	}
	if waitSelector != "" {
		if _, err := page.Context(ctx).Element(waitSelector); err != nil {
			return "", fmt.Errorf("browser: wait for %q on %s: %w", waitSelector, pageURL, err)
		}
	}

	res, err := page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: snapshot %s: %w", pageURL, err)
	}
	return res.Value.Str(), nil
}

// blockResources sets up request interception aborting the configured
// resource types before they hit the network.
func blockResources(page *rod.Page, types []string) error {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[normalizeType(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		if blockSet[normalizeType(string(ctx.Request.Type()))] {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return nil
}

// normalizeType maps CDP resource type names and config plurals onto one
// form, so "images" in a profile blocks the "Image" resource type.
func normalizeType(t string) string {
	switch s := strings.ToLower(t); s {
	case "image", "images":
		return "image"
	case "font", "fonts":
		return "font"
	case "media":
		return "media"
	case "stylesheet", "stylesheets":
		return "stylesheet"
	default:
		return s
	}
}
