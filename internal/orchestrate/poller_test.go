package orchestrate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erpdesk/printflow/internal/fleet"
)

func newTestPoller(svc PrintService) *Poller {
	return NewPoller(svc, 5*time.Millisecond, nil)
}

func TestPollerReachesTerminalState(t *testing.T) {
	svc := &fakeService{
		status: func(call int) (*fleet.PrintJob, error) {
			if call < 3 {
				return jobWith(fleet.JobPrinting, "Front-Desk-A4"), nil
			}
			return jobWith(fleet.JobCompleted, "Front-Desk-A4"), nil
		},
	}

	var updates atomic.Int32
	terminal := make(chan *fleet.PrintJob, 1)

	p := newTestPoller(svc)
	p.Start(context.Background(), "job-1",
		func(job *fleet.PrintJob) { updates.Add(1) },
		func(job *fleet.PrintJob) { terminal <- job })

	select {
	case job := <-terminal:
		require.Equal(t, fleet.JobCompleted, job.Status)
	case <-time.After(time.Second):
		t.Fatal("poller never reached a terminal state")
	}
	require.GreaterOrEqual(t, updates.Load(), int32(3))
}

func TestPollerUpdateFiresOnEveryPoll(t *testing.T) {
	svc := &fakeService{
		status: func(call int) (*fleet.PrintJob, error) {
			// Same state on every poll; updates must still fire.
			if call < 4 {
				return jobWith(fleet.JobPrinting, ""), nil
			}
			return jobWith(fleet.JobCompleted, ""), nil
		},
	}

	var updates atomic.Int32
	terminal := make(chan struct{})

	p := newTestPoller(svc)
	p.Start(context.Background(), "job-1",
		func(job *fleet.PrintJob) { updates.Add(1) },
		func(job *fleet.PrintJob) { close(terminal) })

	<-terminal
	require.Equal(t, int32(4), updates.Load())
}

func TestPollerSynthesizesFailureOnLostConnection(t *testing.T) {
	svc := &fakeService{
		status: func(call int) (*fleet.PrintJob, error) {
			if call <= 2 {
				return jobWith(fleet.JobPrinting, ""), nil
			}
			return nil, errors.New("connection refused")
		},
	}

	var updates, terminals atomic.Int32
	done := make(chan *fleet.PrintJob, 2)

	p := newTestPoller(svc)
	p.Start(context.Background(), "job-1",
		func(job *fleet.PrintJob) { updates.Add(1) },
		func(job *fleet.PrintJob) {
			terminals.Add(1)
			done <- job
		})

	job := <-done
	require.Equal(t, fleet.JobFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	require.Equal(t, "lost connection to print service", *job.ErrorMessage)

	// Give a stray extra terminal callback time to show up.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), terminals.Load(), "onTerminal must fire exactly once")
	require.Equal(t, int32(2), updates.Load())
}

func TestWatchCancelStopsCallbacks(t *testing.T) {
	block := make(chan struct{})
	svc := &fakeService{
		status: func(call int) (*fleet.PrintJob, error) {
			if call == 1 {
				return jobWith(fleet.JobPrinting, ""), nil
			}
			<-block
			return jobWith(fleet.JobPrinting, ""), nil
		},
	}

	var updates atomic.Int32
	p := newTestPoller(svc)
	w := p.Start(context.Background(), "job-1",
		func(job *fleet.PrintJob) { updates.Add(1) },
		func(job *fleet.PrintJob) { t.Error("terminal callback after cancel") })

	require.Eventually(t, func() bool { return updates.Load() == 1 }, time.Second, time.Millisecond)

	w.Cancel()
	seen := updates.Load()
	close(block)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, seen, updates.Load(), "no update callback may fire after cancel")
}

func TestWatchCancelIsIdempotent(t *testing.T) {
	svc := &fakeService{
		status: func(call int) (*fleet.PrintJob, error) {
			return jobWith(fleet.JobPrinting, ""), nil
		},
	}

	p := newTestPoller(svc)
	w := p.Start(context.Background(), "job-1", func(*fleet.PrintJob) {}, func(*fleet.PrintJob) {})

	require.NotPanics(t, func() {
		w.Cancel()
		w.Cancel()
		w.Cancel()
	})
}
