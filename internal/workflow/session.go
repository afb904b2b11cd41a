// Package workflow runs form filling cycles against a loaded page.
//
// A Session owns one tab: the page, the single-slot PDF cache, the detection
// monitor and the cycle lock. Every operation that touches the page holds the
// lock, so cycles never overlap and the monitor skips ticks while one runs.
package workflow

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/a3tai/mcp-form-filler/internal/dom"
	"github.com/a3tai/mcp-form-filler/internal/errors"
	"github.com/a3tai/mcp-form-filler/internal/form"
	"github.com/a3tai/mcp-form-filler/internal/locator"
	"github.com/a3tai/mcp-form-filler/internal/page"
	"github.com/a3tai/mcp-form-filler/internal/pdf"
	"github.com/a3tai/mcp-form-filler/internal/processor"
)

// EndpointStore provides the document processing endpoint.
type EndpointStore interface {
	Endpoint() string
	SetEndpoint(raw string) error
}

// Deps are the collaborators of a Session.
type Deps struct {
	Locator   *locator.Locator
	Client    *processor.Client
	Validator *pdf.Validator
	Endpoints EndpointStore
}

// Options configures a Session.
type Options struct {
	FormID        string
	RequiredClass string
	Reset         form.ResetOptions
	PollInterval  time.Duration
	InitialDelay  time.Duration
	// Monitor starts PDF detection whenever a page is loaded.
	Monitor bool
}

// Session is one tab.
type Session struct {
	deps      Deps
	opts      Options
	extractor *form.Extractor
	ctx       context.Context

	// loadMu serializes page replacement so exactly one monitor is live.
	loadMu sync.Mutex

	mu        sync.Mutex
	cache     *locator.Cache
	page      *page.Page
	monitor   *locator.Monitor
	detection *locator.Detection
}

// New creates a session without a page. Monitors started by the session stop
// when ctx is done.
func New(ctx context.Context, deps Deps, opts Options) *Session {
	if deps.Locator == nil {
		deps.Locator = locator.New(locator.Options{})
	}
	if deps.Client == nil {
		deps.Client = processor.NewClient(processor.DefaultTimeout)
	}
	if deps.Validator == nil {
		deps.Validator = pdf.NewValidator(pdf.DefaultMaxFileSize)
	}
	if opts.Reset.ProtectedDefaults == nil && opts.Reset.RadioBaseline == nil {
		opts.Reset = form.DefaultResetOptions()
	}
	return &Session{
		deps:      deps,
		opts:      opts,
		extractor: form.NewExtractor(opts.RequiredClass),
		ctx:       ctx,
		cache:     &locator.Cache{},
	}
}

// PageInfo summarizes a loaded page.
type PageInfo struct {
	URL        string `json:"url,omitempty"`
	FormFound  bool   `json:"form_found"`
	Controls   int    `json:"controls"`
	FileInputs int    `json:"file_inputs"`
	Iframes    int    `json:"iframes"`
	Monitoring bool   `json:"monitoring"`
}

// LoadPage replaces the tab's page. Detection for the previous page stops and
// all state derived from it is dropped.
func (s *Session) LoadPage(markup, rawURL string) (*PageInfo, error) {
	p, err := page.Load(markup, rawURL)
	if err != nil {
		return nil, errors.NewValidationError(err, "invalid page")
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	old := s.monitor
	s.monitor = nil
	s.mu.Unlock()
	if old != nil {
		// Stop waits for a running tick, which needs the lock.
		old.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Invalidate()
	s.deps.Locator.Forget()
	s.detection = nil
	s.page = p

	p.Document().AddListener(func(ev dom.Event) {
		if ev.Type == dom.EventChange && dom.ControlType(ev.Target) == "file" {
			s.handleUploadLocked()
		}
	})

	s.monitor = locator.NewMonitor(s.deps.Locator, p, s.cache, locator.MonitorOptions{
		Interval:      s.opts.PollInterval,
		InitialDelay:  s.opts.InitialDelay,
		Guard:         &s.mu,
		OnDetect:      s.onDetectLocked,
		OnFrameChange: func(string) { s.handleUploadLocked() },
	})
	if s.opts.Monitor {
		s.monitor.Start(s.ctx)
	}

	doc := p.Document()
	info := &PageInfo{
		FormFound:  doc.GetElementByID(s.opts.FormID) != nil,
		Controls:   len(dom.Controls(doc.Scope(s.opts.FormID))),
		FileInputs: len(p.FileInputs()),
		Iframes:    len(locator.Candidates(p)),
		Monitoring: s.opts.Monitor,
	}
	if u := p.URL(); u != nil {
		info.URL = u.String()
	}
	log.Printf("workflow.Session: loaded page %q (%d controls, %d file inputs, %d iframes)",
		info.URL, info.Controls, info.FileInputs, info.Iframes)
	return info, nil
}

// Close stops detection.
func (s *Session) Close() {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	m := s.monitor
	s.mu.Unlock()
	if m != nil {
		m.Stop()
	}
}

// HTML returns the current markup of the page.
func (s *Session) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.requirePage()
	if err != nil {
		return "", err
	}
	return p.Document().String(), nil
}

// AttachPDF selects a PDF in the file input named or identified by input,
// the way a user upload would. The bytes are inspected first.
func (s *Session) AttachPDF(input string, f page.File) (*pdf.Inspection, error) {
	if f.Name == "" {
		f.Name = "document.pdf"
	}
	insp, err := s.deps.Validator.Validate(f.Name, f.Data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.attachLocked(input, f); err != nil {
		return nil, err
	}
	return insp, nil
}

// AttachPDFFile reads and inspects the PDF at path and attaches it like
// AttachPDF.
func (s *Session) AttachPDFFile(input, path string) (*pdf.Inspection, error) {
	data, insp, err := s.deps.Validator.ValidateFile(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.attachLocked(input, page.File{Name: insp.Name, Data: data}); err != nil {
		return nil, err
	}
	return insp, nil
}

func (s *Session) attachLocked(input string, f page.File) error {
	p, err := s.requirePage()
	if err != nil {
		return err
	}
	if f.ContentType == "" {
		f.ContentType = page.PDFContentType
	}
	if err := p.AttachFile(input, f); err != nil {
		return errors.NewNotFoundError("%v", err)
	}
	return nil
}

// Schema extracts the field schema of the configured form.
func (s *Session) Schema() (*form.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.requirePage()
	if err != nil {
		return nil, err
	}
	doc := p.Document()
	return s.extractor.Extract(doc, doc.Scope(s.opts.FormID)), nil
}

// Fill writes values into the configured form.
func (s *Session) Fill(values map[string]any) (*form.FillOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.requirePage()
	if err != nil {
		return nil, err
	}
	doc := p.Document()
	return form.NewFiller(doc, doc.Scope(s.opts.FormID)).Fill(values), nil
}

// Reset restores the configured form to its baseline and returns the number
// of controls reset.
func (s *Session) Reset() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.requirePage(); err != nil {
		return 0, err
	}
	return s.resetLocked(), nil
}

// HandleUpload reacts to a new upload: the cached PDF and the probe memory
// are dropped and the form is reset so nothing from the previous document
// leaks into the next cycle.
func (s *Session) HandleUpload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.requirePage(); err != nil {
		return err
	}
	s.handleUploadLocked()
	return nil
}

// SetViewer points the marker viewer iframe at src, as the host page does
// once an upload has been stored.
func (s *Session) SetViewer(src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.requirePage()
	if err != nil {
		return err
	}
	frame := locator.MarkerFrame(p)
	if frame == nil {
		return errors.NewNotFoundError("page has no viewer iframe marked %s=%q", locator.MarkerAttr, locator.MarkerValue)
	}
	dom.SetAttr(frame, "src", src)
	return nil
}

// Detect runs one detection pass now instead of waiting for the next tick.
func (s *Session) Detect(ctx context.Context) (*locator.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.requirePage(); err != nil {
		return nil, err
	}
	return s.monitor.Check(ctx), nil
}

// Endpoint returns the configured processing endpoint.
func (s *Session) Endpoint() string {
	if s.deps.Endpoints == nil {
		return ""
	}
	return s.deps.Endpoints.Endpoint()
}

// SetEndpoint validates and saves the processing endpoint.
func (s *Session) SetEndpoint(raw string) error {
	if s.deps.Endpoints == nil {
		return errors.NewConfigError("endpoint store not configured")
	}
	return s.deps.Endpoints.SetEndpoint(raw)
}

// Status describes the tab.
type Status struct {
	URL           string             `json:"url,omitempty"`
	PageLoaded    bool               `json:"page_loaded"`
	Endpoint      string             `json:"endpoint,omitempty"`
	Detected      bool               `json:"detected"`
	LastDetection *locator.Detection `json:"last_detection,omitempty"`
	CachedFile    string             `json:"cached_file,omitempty"`
	LastCheck     *time.Time         `json:"last_check,omitempty"`
	ProbedFrames  int                `json:"probed_frames"`
}

// Status returns a snapshot of the tab. It does not wait for a running cycle.
func (s *Session) Status() *Status {
	st := &Status{
		Endpoint:     s.Endpoint(),
		ProbedFrames: s.deps.Locator.Recent().Len(),
	}
	if name, ok := s.cache.Peek(); ok {
		st.CachedFile = name
	}

	if !s.mu.TryLock() {
		return st
	}
	defer s.mu.Unlock()
	if s.page == nil {
		return st
	}
	st.PageLoaded = true
	if u := s.page.URL(); u != nil {
		st.URL = u.String()
	}
	st.LastDetection = s.detection
	if s.monitor != nil {
		st.Detected = s.monitor.Detected()
		if t := s.monitor.LastCheck(); !t.IsZero() {
			st.LastCheck = &t
		}
	}
	return st
}

func (s *Session) requirePage() (*page.Page, error) {
	if s.page == nil {
		return nil, errors.NewNotFoundError("no page loaded")
	}
	return s.page, nil
}

func (s *Session) resetLocked() int {
	doc := s.page.Document()
	return form.Reset(doc, doc.Scope(s.opts.FormID), s.opts.Reset)
}

// handleUploadLocked runs from event listeners and monitor callbacks, both of
// which fire while the lock is held.
func (s *Session) handleUploadLocked() {
	log.Printf("workflow.Session: new upload, dropping cached PDF and resetting form")
	s.cache.Invalidate()
	s.deps.Locator.Forget()
	s.detection = nil
	if s.monitor != nil {
		s.monitor.Reset()
	}
	s.resetLocked()
}

func (s *Session) onDetectLocked(d locator.Detection) {
	s.detection = &d
	s.resetLocked()
}
