package orchestrate

import (
	"context"
	"sync"
	"time"

	"github.com/erpdesk/printflow/internal/fleet"
)

// PrintStatus is the macro-state of one orchestration session.
type PrintStatus string

const (
	StatusPreparing        PrintStatus = "preparing"
	StatusCheckingPrinter  PrintStatus = "checking_printer"
	StatusPrinterSelection PrintStatus = "printer_selection"
	StatusPrinting         PrintStatus = "printing"
	StatusCompleted        PrintStatus = "completed"
	StatusFailed           PrintStatus = "failed"
)

// Terminal reports whether the session accepts no further automatic
// transitions. Leaving a terminal state requires an explicit user retry.
func (s PrintStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Result is the single terminal notification delivered to the external
// caller when a session completes or fails.
type Result struct {
	Success     bool   `json:"success"`
	Method      string `json:"method"`
	Destination string `json:"destination"`
	Error       string `json:"error,omitempty"`
}

// Session is the in-memory aggregate for one user-initiated print action.
// Exactly one session exists per in-flight action; all fields are guarded
// by mu and mutated only by the orchestrator.
type Session struct {
	mu sync.Mutex

	id               string
	doc              fleet.DocumentRef
	copies           int
	requestedPrinter string
	requestedType    fleet.PrinterType

	status          PrintStatus
	job             *fleet.PrintJob
	retryCount      int
	selectedPrinter string
	candidates      []Candidate
	errorMessage    string
	usedPrinter     string
	fallback        *FallbackOffer
	retryDisabled   bool
	cancelled       bool
	notified        bool

	createdAt   time.Time
	completedAt *time.Time

	watch  *Watch
	timer  *time.Timer
	ctx    context.Context
	stop   context.CancelFunc
	notify func(Result)
}

// replaceWatch installs a new watch handle, returning the one it displaces
// so the caller can cancel it outside the session lock. The session holds
// at most one active watch at a time.
func (s *Session) replaceWatch(w *Watch) *Watch {
	old := s.watch
	s.watch = w
	return old
}

// Snapshot is the read-only view of a session handed to API callers.
type Snapshot struct {
	ID               string            `json:"id"`
	Document         fleet.DocumentRef `json:"document"`
	Copies           int               `json:"copies"`
	RequestedPrinter string            `json:"requested_printer,omitempty"`
	RequestedType    fleet.PrinterType `json:"requested_type"`
	Status           PrintStatus       `json:"status"`
	SelectedPrinter  string            `json:"selected_printer,omitempty"`
	UsedPrinter      string            `json:"used_printer,omitempty"`
	Candidates       []Candidate       `json:"candidates,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	RetryCount       int               `json:"retry_count"`
	CanRetry         bool              `json:"can_retry"`
	Fallback         *FallbackOffer    `json:"fallback,omitempty"`
	JobID            string            `json:"job_id,omitempty"`
	JobStatus        fleet.JobStatus   `json:"job_status,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// snapshotLocked builds a Snapshot; callers must hold s.mu.
func (s *Session) snapshotLocked(maxRetries int) Snapshot {
	snap := Snapshot{
		ID:               s.id,
		Document:         s.doc,
		Copies:           s.copies,
		RequestedPrinter: s.requestedPrinter,
		RequestedType:    s.requestedType,
		Status:           s.status,
		SelectedPrinter:  s.selectedPrinter,
		UsedPrinter:      s.usedPrinter,
		ErrorMessage:     s.errorMessage,
		RetryCount:       s.retryCount,
		Fallback:         s.fallback,
		CreatedAt:        s.createdAt,
		CompletedAt:      s.completedAt,
	}
	snap.Candidates = append(snap.Candidates, s.candidates...)
	snap.CanRetry = s.status == StatusFailed && !s.retryDisabled && s.retryCount < maxRetries
	if s.job != nil {
		snap.JobID = s.job.ID
		snap.JobStatus = s.job.Status
	}
	return snap
}

// Record is what the orchestrator hands to the history store when a
// session reaches a terminal state or is cancelled.
type Record struct {
	SessionID    string
	Document     fleet.DocumentRef
	Status       string
	Printer      string
	Copies       int
	RetryCount   int
	ErrorMessage string
	CreatedAt    time.Time
	CompletedAt  time.Time
}

// Recorder persists finished sessions. Implementations must tolerate being
// called from multiple session goroutines.
type Recorder interface {
	RecordSession(rec Record) error
}
