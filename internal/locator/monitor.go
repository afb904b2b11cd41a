package locator

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/a3tai/mcp-form-filler/internal/dom"
	"github.com/a3tai/mcp-form-filler/internal/page"
)

// Polling defaults.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultInitialDelay = time.Second
)

// Detection announces a PDF found by the monitor.
type Detection struct {
	Source *PdfSource `json:"source"`
	At     time.Time  `json:"at"`
}

// TryLocker is satisfied by *sync.Mutex. The monitor skips a tick when the
// lock is held by a running cycle.
type TryLocker interface {
	TryLock() bool
	Unlock()
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Interval     time.Duration
	InitialDelay time.Duration
	Guard        TryLocker
	// Callbacks run while Guard is held and must not acquire it.

	// OnDetect is called once per detection.
	OnDetect func(Detection)
	// OnFrameChange is called when the viewer iframe starts showing a newly
	// stored document.
	OnFrameChange func(src string)
}

// Monitor periodically looks for a PDF on a page. A file found in a file
// input is stored in the cache for the next cycle; iframe sources are probed
// once each and remembered in the locator's recent set.
type Monitor struct {
	locator *Locator
	page    *page.Page
	cache   *Cache
	opts    MonitorOptions

	mu        sync.Mutex
	detected  bool
	frameSrc  string
	cancel    context.CancelFunc
	done      chan struct{}
	lastCheck time.Time
}

// NewMonitor creates a stopped monitor for p.
func NewMonitor(l *Locator, p *page.Page, cache *Cache, opts MonitorOptions) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = DefaultInitialDelay
	}
	m := &Monitor{locator: l, page: p, cache: cache, opts: opts}
	if frame := MarkerFrame(p); frame != nil {
		m.frameSrc = dom.AttrOr(frame, "src")
	}
	return m
}

// Start runs the monitor until ctx is done or Stop is called. Starting a
// running monitor does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
}

// Stop cancels the monitor and waits for its loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Reset forgets the current detection so the next tick reports a new one.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detected = false
}

// Detected reports whether a PDF has been detected since the last reset.
func (m *Monitor) Detected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detected
}

// LastCheck returns the time of the last completed tick.
func (m *Monitor) LastCheck() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCheck
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(m.opts.InitialDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	m.tick(ctx)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	if g := m.opts.Guard; g != nil {
		if !g.TryLock() {
			log.Printf("locator.Monitor: cycle in progress, skipping check")
			return
		}
		defer g.Unlock()
	}
	m.Check(ctx)
}

// Check runs one detection pass and returns the new detection, if any. Each
// pass is independent: sources already detected or probed are not reported
// again.
func (m *Monitor) Check(ctx context.Context) *Detection {
	defer func() {
		m.mu.Lock()
		m.lastCheck = time.Now()
		m.mu.Unlock()
	}()

	m.checkFrameChange()

	if f, ok := FromFileInputs(m.page); ok {
		if m.markDetected() {
			m.cache.Store(*f)
			log.Printf("locator.Monitor: cached %s from file input", f.Name)
			return m.announce(&PdfSource{Kind: SourceBytes, Origin: OriginFileInput, File: f})
		}
		return nil
	}

	for _, src := range Candidates(m.page) {
		if ctx.Err() != nil {
			return nil
		}
		if m.locator.recent.Contains(src) {
			continue
		}
		target := ResolveViewerURL(src)
		err := m.locator.prober.Validate(ctx, target)
		if m.locator.recent.Add(src) {
			log.Printf("locator.Monitor: forgot oldest probed iframe")
		}
		if err != nil {
			log.Printf("locator.Monitor: skipping iframe %s: %v", src, err)
			continue
		}
		m.markDetected()
		return m.announce(&PdfSource{Kind: SourceURL, Origin: OriginIframe, URL: target, Frame: src})
	}
	return nil
}

func (m *Monitor) markDetected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detected {
		return false
	}
	m.detected = true
	return true
}

func (m *Monitor) announce(src *PdfSource) *Detection {
	d := &Detection{Source: src, At: time.Now()}
	log.Printf("locator.Monitor: detected %s", src.Describe())
	if m.opts.OnDetect != nil {
		m.opts.OnDetect(*d)
	}
	return d
}

func (m *Monitor) checkFrameChange() {
	frame := MarkerFrame(m.page)
	if frame == nil {
		return
	}
	src := dom.AttrOr(frame, "src")

	m.mu.Lock()
	changed := src != m.frameSrc
	m.frameSrc = src
	m.mu.Unlock()

	if changed && strings.Contains(src, StorageViewPath) {
		log.Printf("locator.Monitor: viewer iframe now shows %s", src)
		if m.opts.OnFrameChange != nil {
			m.opts.OnFrameChange(src)
		}
	}
}
