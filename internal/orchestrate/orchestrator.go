package orchestrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erpdesk/printflow/internal/fleet"
)

const (
	defaultMaxRetries     = 3
	defaultSessionTimeout = 5 * time.Minute
)

// Config tunes the orchestration state machine.
type Config struct {
	// MaxRetries caps user-triggered retries of a failed session.
	MaxRetries int
	// PollInterval is the job status polling interval.
	PollInterval time.Duration
	// SessionTimeout bounds a whole session as a hardening measure on top
	// of the retry cap. Zero disables it.
	SessionTimeout time.Duration
	// MatchNameAcrossTypes lets a same-named printer of a different class
	// count as the available default.
	MatchNameAcrossTypes bool
}

// Orchestrator sequences availability checking, printer resolution, job
// dispatch and status polling for independent print sessions. Within one
// session network calls are strictly sequenced; sessions share nothing but
// the read-only print service.
type Orchestrator struct {
	svc        PrintService
	checker    *AvailabilityChecker
	resolver   *Resolver
	dispatcher *Dispatcher
	poller     *Poller
	fallback   *FallbackCoordinator
	recorder   Recorder
	logger     *zap.Logger

	maxRetries     int
	sessionTimeout time.Duration

	root     context.Context
	shutdown context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

func New(svc PrintService, fallback *FallbackCoordinator, recorder Recorder, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.SessionTimeout < 0 {
		cfg.SessionTimeout = defaultSessionTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	resolver := NewResolver()
	resolver.MatchNameAcrossTypes = cfg.MatchNameAcrossTypes

	root, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		svc:            svc,
		checker:        NewAvailabilityChecker(svc, logger),
		resolver:       resolver,
		dispatcher:     NewDispatcher(svc, logger),
		poller:         NewPoller(svc, cfg.PollInterval, logger),
		fallback:       fallback,
		recorder:       recorder,
		logger:         logger,
		maxRetries:     cfg.MaxRetries,
		sessionTimeout: cfg.SessionTimeout,
		root:           root,
		shutdown:       cancel,
		sessions:       make(map[string]*Session),
	}
}

// StartRequest describes one user-initiated print action.
type StartRequest struct {
	Document         fleet.DocumentRef
	Copies           int
	RequestedPrinter string
	RequestedType    fleet.PrinterType
	// Notify, when set, receives the single terminal Result of each attempt.
	Notify func(Result)
}

// Start creates a session and begins the orchestration flow. The returned
// snapshot shows the session in its initial state; callers follow progress
// via Session or the Notify callback.
func (o *Orchestrator) Start(req StartRequest) (Snapshot, error) {
	if !req.Document.Type.Valid() {
		return Snapshot{}, fmt.Errorf("unknown document type %q", req.Document.Type)
	}
	if req.Document.ID == "" {
		return Snapshot{}, fmt.Errorf("document id is required")
	}
	if req.Copies == 0 {
		req.Copies = 1
	}
	if req.Copies < minCopies || req.Copies > maxCopies {
		return Snapshot{}, ErrCopiesOutOfRange
	}
	if req.RequestedType == "" {
		req.RequestedType = fleet.RequiredPrinterType(req.Document.Type)
	}

	ctx, stop := context.WithCancel(o.root)
	s := &Session{
		id:               uuid.NewString(),
		doc:              req.Document,
		copies:           req.Copies,
		requestedPrinter: req.RequestedPrinter,
		requestedType:    req.RequestedType,
		status:           StatusPreparing,
		createdAt:        time.Now(),
		ctx:              ctx,
		stop:             stop,
		notify:           req.Notify,
	}
	if o.sessionTimeout > 0 {
		s.timer = time.AfterFunc(o.sessionTimeout, func() { o.expire(s) })
	}

	o.mu.Lock()
	o.sessions[s.id] = s
	o.mu.Unlock()

	o.logger.Info("print session started",
		zap.String("session_id", s.id),
		zap.String("document_type", string(req.Document.Type)),
		zap.String("document_id", req.Document.ID),
		zap.Int("copies", req.Copies))

	go o.run(s)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(o.maxRetries), nil
}

// Session returns a point-in-time view of a session.
func (o *Orchestrator) Session(id string) (Snapshot, error) {
	s, err := o.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(o.maxRetries), nil
}

// ConfirmPrinter moves a session from printer selection to printing with
// the candidate the user confirmed.
func (o *Orchestrator) ConfirmPrinter(id, printerName string) error {
	s, err := o.get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return ErrSessionFinished
	}
	if s.status != StatusPrinterSelection {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	found := false
	for _, c := range s.candidates {
		if c.Printer.Name == printerName {
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return ErrUnknownPrinter
	}
	s.selectedPrinter = printerName
	s.status = StatusPrinting
	s.mu.Unlock()

	go o.dispatch(s, &printerName)
	return nil
}

// Retry re-runs the whole flow from the availability check. It is only
// valid from a failed state, and refused once the retry cap is reached —
// the action is exhausted, not hidden.
func (o *Orchestrator) Retry(id string) error {
	s, err := o.get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.status == StatusCompleted {
		s.mu.Unlock()
		return ErrSessionFinished
	}
	if s.status != StatusFailed {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	if s.retryDisabled {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	if s.retryCount >= o.maxRetries {
		s.mu.Unlock()
		return ErrRetriesExhausted
	}
	s.retryCount++
	s.status = StatusCheckingPrinter
	s.job = nil
	s.candidates = nil
	s.selectedPrinter = ""
	s.usedPrinter = ""
	s.errorMessage = ""
	s.fallback = nil
	s.completedAt = nil
	s.notified = false
	retries := s.retryCount
	s.mu.Unlock()

	o.logger.Info("print session retry",
		zap.String("session_id", s.id),
		zap.Int("retry_count", retries))

	go o.run(s)
	return nil
}

// Cancel tears a session down from any state: the active watch is cancelled
// before the session is released, so no callback outlives it.
func (o *Orchestrator) Cancel(id string) error {
	s, err := o.get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cancelled = true
	wasTerminal := s.status.Terminal()
	old := s.replaceWatch(nil)
	rec := o.recordLocked(s, "cancelled")
	s.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.stop()

	o.mu.Lock()
	delete(o.sessions, id)
	o.mu.Unlock()

	if !wasTerminal {
		sessionsCancelled.Inc()
		o.record(rec)
	}

	o.logger.Info("print session cancelled", zap.String("session_id", id))
	return nil
}

// FallbackURL builds the browser-print URI for a session's document.
func (o *Orchestrator) FallbackURL(id string) (string, error) {
	s, err := o.get(id)
	if err != nil {
		return "", err
	}
	return o.fallback.BuildURL(s.doc.Type, s.doc.ID)
}

// Shutdown cancels every in-flight session.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	ids := make([]string, 0, len(o.sessions))
	for id := range o.sessions {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		_ = o.Cancel(id)
	}
	o.shutdown()
}

func (o *Orchestrator) get(id string) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// run drives one pass of the flow: availability check, resolution, then
// dispatch or selection. Calls are strictly sequenced; the next network
// round-trip starts only after the previous result is applied.
func (o *Orchestrator) run(s *Session) {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.status = StatusCheckingPrinter
	s.mu.Unlock()

	avail := o.checker.Check(s.ctx, s.doc.Type)
	if o.fallback.ShouldOffer(avail) {
		reason := avail.FallbackReason
		if reason == "" {
			reason = msgServiceUnreachable
		}
		o.fail(s, reason, failOpts{offerFallback: true, reason: reason})
		return
	}

	pa, err := o.svc.PrinterAvailability(s.ctx, s.doc.Type, true)
	if err != nil {
		o.fail(s, msgServiceUnreachable, failOpts{offerFallback: true, reason: msgServiceUnreachable})
		return
	}

	res := o.resolver.Resolve(s.requestedPrinter, s.requestedType, pa.AvailablePrinters)
	defaultAvailable := res.DefaultAvailable ||
		(s.requestedPrinter == "" && pa.DefaultPrinterAvailable)

	if defaultAvailable {
		s.mu.Lock()
		if s.cancelled {
			s.mu.Unlock()
			return
		}
		s.status = StatusPrinting
		s.mu.Unlock()
		o.dispatch(s, nil)
		return
	}

	if len(res.Candidates) > 0 {
		s.mu.Lock()
		if s.cancelled {
			s.mu.Unlock()
			return
		}
		s.status = StatusPrinterSelection
		s.candidates = res.Candidates
		s.selectedPrinter = res.Candidates[0].Printer.Name
		s.mu.Unlock()
		o.logger.Info("printer selection required",
			zap.String("session_id", s.id),
			zap.String("preselected", res.Candidates[0].Printer.Name),
			zap.Int("candidates", len(res.Candidates)))
		return
	}

	msg := msgNoPrinters
	if res.RequiredType == fleet.PrinterTypePOS {
		msg = msgNoPOSPrinters
	}
	// An empty fleet is not fixed by retrying; only cancel and fallback
	// remain useful.
	o.fail(s, msg, failOpts{offerFallback: true, reason: msg, disableRetry: true})
}

// dispatch submits the job and hands the id to the poller. The previous
// watch, if any, is cancelled before the new one is installed.
func (o *Orchestrator) dispatch(s *Session, printerName *string) {
	jobID, err := o.dispatcher.Submit(s.ctx, s.doc, printerName, s.copies)
	if err != nil {
		o.fail(s, err.Error(), failOpts{offerFallback: true})
		return
	}
	jobsDispatched.Inc()

	w := o.poller.Start(s.ctx, jobID,
		func(job *fleet.PrintJob) { o.onPoll(s, job) },
		func(job *fleet.PrintJob) { o.onTerminal(s, job) })

	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		w.Cancel()
		return
	}
	s.job = &fleet.PrintJob{ID: jobID, Status: fleet.JobPending, Copies: s.copies, CreatedAt: time.Now()}
	old := s.replaceWatch(w)
	s.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
}

// onPoll applies a non-terminal poller update to the session without
// changing the macro-state.
func (o *Orchestrator) onPoll(s *Session, job *fleet.PrintJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.status != StatusPrinting {
		return
	}
	s.job = job
	if job.UsedPrinterName != nil {
		s.usedPrinter = *job.UsedPrinterName
	}
}

func (o *Orchestrator) onTerminal(s *Session, job *fleet.PrintJob) {
	s.mu.Lock()
	if s.cancelled || s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.job = job
	if job.UsedPrinterName != nil {
		s.usedPrinter = *job.UsedPrinterName
	}
	s.mu.Unlock()

	if job.Status == fleet.JobCompleted {
		o.complete(s)
		return
	}
	msg := "print job failed"
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		msg = *job.ErrorMessage
	}
	o.fail(s, msg, failOpts{offerFallback: true})
}

func (o *Orchestrator) complete(s *Session) {
	now := time.Now()

	s.mu.Lock()
	if s.cancelled || s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.status = StatusCompleted
	s.completedAt = &now
	s.watch = nil
	dest := s.usedPrinter
	if dest == "" {
		dest = s.selectedPrinter
	}
	notify := s.terminalNotifyLocked(Result{Success: true, Method: "print", Destination: dest})
	rec := o.recordLocked(s, string(StatusCompleted))
	s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	sessionsCompleted.Inc()
	o.record(rec)
	o.logger.Info("print session completed",
		zap.String("session_id", s.id),
		zap.String("printer", dest))
	if notify != nil {
		notify()
	}
}

type failOpts struct {
	offerFallback bool
	reason        string
	disableRetry  bool
}

func (o *Orchestrator) fail(s *Session, message string, opts failOpts) {
	now := time.Now()

	var offer *FallbackOffer
	if opts.offerFallback {
		url, err := o.fallback.BuildURL(s.doc.Type, s.doc.ID)
		if err != nil {
			o.logger.Error("building fallback url failed", zap.Error(err))
		} else {
			offer = &FallbackOffer{URL: url, Reason: opts.reason}
			fallbackOffers.Inc()
		}
	}

	s.mu.Lock()
	if s.cancelled || s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.status = StatusFailed
	s.errorMessage = message
	s.completedAt = &now
	s.fallback = offer
	if opts.disableRetry {
		s.retryDisabled = true
	}
	s.watch = nil
	dest := s.usedPrinter
	if dest == "" {
		dest = s.selectedPrinter
	}
	notify := s.terminalNotifyLocked(Result{Success: false, Method: "print", Destination: dest, Error: message})
	rec := o.recordLocked(s, string(StatusFailed))
	s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	sessionsFailed.Inc()
	o.record(rec)
	o.logger.Warn("print session failed",
		zap.String("session_id", s.id),
		zap.String("error", message))
	if notify != nil {
		notify()
	}
}

// expire enforces the optional whole-session deadline.
func (o *Orchestrator) expire(s *Session) {
	s.mu.Lock()
	if s.cancelled || s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	old := s.replaceWatch(nil)
	s.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
	o.fail(s, msgSessionTimeout, failOpts{offerFallback: true, reason: msgSessionTimeout})
}

// terminalNotifyLocked arms the per-attempt terminal notification exactly
// once; callers must hold s.mu and invoke the returned func after
// releasing it.
func (s *Session) terminalNotifyLocked(res Result) func() {
	if s.notified || s.notify == nil {
		return nil
	}
	s.notified = true
	fn := s.notify
	return func() { fn(res) }
}

func (o *Orchestrator) recordLocked(s *Session, status string) Record {
	printer := s.usedPrinter
	if printer == "" {
		printer = s.selectedPrinter
	}
	completed := time.Now()
	if s.completedAt != nil {
		completed = *s.completedAt
	}
	return Record{
		SessionID:    s.id,
		Document:     s.doc,
		Status:       status,
		Printer:      printer,
		Copies:       s.copies,
		RetryCount:   s.retryCount,
		ErrorMessage: s.errorMessage,
		CreatedAt:    s.createdAt,
		CompletedAt:  completed,
	}
}

func (o *Orchestrator) record(rec Record) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordSession(rec); err != nil {
		o.logger.Error("recording session history failed",
			zap.String("session_id", rec.SessionID),
			zap.Error(err))
	}
}
