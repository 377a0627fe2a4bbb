package orchestrate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erpdesk/printflow/internal/fleet"
)

const defaultPollInterval = 2 * time.Second

// Poller repeatedly queries a submitted job until it reaches a terminal
// state. Each Watch call owns exactly one polling loop; the returned handle
// is the only way to stop it early.
type Poller struct {
	svc      PrintService
	interval time.Duration
	logger   *zap.Logger
}

func NewPoller(svc PrintService, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{svc: svc, interval: interval, logger: logger}
}

// Watch is a cancellation handle for one polling loop. Cancel is idempotent
// and guarantees that no callback fires after it returns.
type Watch struct {
	mu   sync.Mutex
	done bool
	stop chan struct{}
}

func (w *Watch) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	w.done = true
	close(w.stop)
}

// fire runs fn unless the watch is already finished. Holding the mutex
// while fn runs is what makes Cancel a hard barrier: once Cancel returns,
// no callback is in flight or can start.
func (w *Watch) fire(fn func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return false
	}
	fn()
	return true
}

// finish runs fn at most once and permanently stops the watch.
func (w *Watch) finish(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	w.done = true
	close(w.stop)
	fn()
}

// Start begins polling jobID. onUpdate runs on every successful poll,
// terminal or not; onTerminal runs exactly once when the job first reports
// completed or failed, after which polling stops for good. A failed status
// query does not poll forever: it synthesizes a failed job and terminates.
func (p *Poller) Start(ctx context.Context, jobID string, onUpdate, onTerminal func(*fleet.PrintJob)) *Watch {
	w := &Watch{stop: make(chan struct{})}
	go p.loop(ctx, jobID, w, onUpdate, onTerminal)
	return w
}

func (p *Poller) loop(ctx context.Context, jobID string, w *Watch, onUpdate, onTerminal func(*fleet.PrintJob)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		job, err := p.svc.JobStatus(ctx, jobID)
		if err != nil {
			p.logger.Warn("job status poll failed, stopping watch",
				zap.String("job_id", jobID),
				zap.Error(err))
			w.finish(func() { onTerminal(lostConnectionJob(jobID)) })
			return
		}

		if !w.fire(func() { onUpdate(job) }) {
			return
		}

		if job.Status.Terminal() {
			w.finish(func() { onTerminal(job) })
			return
		}

		select {
		case <-ctx.Done():
			w.finish(func() { onTerminal(lostConnectionJob(jobID)) })
			return
		case <-w.stop:
			return
		case <-ticker.C:
		}
	}
}

func lostConnectionJob(jobID string) *fleet.PrintJob {
	msg := msgConnectionLost
	return &fleet.PrintJob{
		ID:           jobID,
		Status:       fleet.JobFailed,
		ErrorMessage: &msg,
		CreatedAt:    time.Now(),
	}
}
