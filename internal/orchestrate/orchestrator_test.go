package orchestrate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erpdesk/printflow/internal/fleet"
)

func newTestOrchestrator(svc PrintService) *Orchestrator {
	fb := NewFallbackCoordinator("https://erp.example.com", nil)
	return New(svc, fb, nil, Config{
		PollInterval:         5 * time.Millisecond,
		MatchNameAcrossTypes: true,
	}, nil)
}

func waitForStatus(t *testing.T, o *Orchestrator, id string, want PrintStatus) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = o.Session(id)
		return err == nil && snap.Status == want
	}, 2*time.Second, time.Millisecond, "session never reached %s", want)
	return snap
}

func TestDefaultAvailableDispatchesImmediately(t *testing.T) {
	svc := &fakeService{
		printerAvail: onlineFleet(printer("Front-Desk-A4", fleet.PrinterTypeStandard, fleet.PrinterOnline)),
		status: func(call int) (*fleet.PrintJob, error) {
			return jobWith(fleet.JobCompleted, "Front-Desk-A4"), nil
		},
	}
	o := newTestOrchestrator(svc)
	defer o.Shutdown()

	results := make(chan Result, 1)
	snap, err := o.Start(StartRequest{
		Document:         testDoc,
		RequestedPrinter: "Front-Desk-A4",
		RequestedType:    fleet.PrinterTypeStandard,
		Notify:           func(r Result) { results <- r },
	})
	require.NoError(t, err)
	require.Equal(t, 1, snap.Copies, "copies defaults to 1")

	select {
	case res := <-results:
		require.True(t, res.Success)
		require.Equal(t, "print", res.Method)
		require.Equal(t, "Front-Desk-A4", res.Destination)
	case <-time.After(2 * time.Second):
		t.Fatal("no terminal notification")
	}

	final := waitForStatus(t, o, snap.ID, StatusCompleted)
	require.Equal(t, "Front-Desk-A4", final.UsedPrinter)
	require.Nil(t, svc.lastSubmitPrinter, "available default dispatches with a nil printer name")
}

func TestOfflineDefaultRequiresSelection(t *testing.T) {
	svc := &fakeService{
		printerAvail: onlineFleet(
			printer("Front-Desk-A4", fleet.PrinterTypeStandard, fleet.PrinterOffline),
			printer("FrontDesk-A4", fleet.PrinterTypeStandard, fleet.PrinterOnline),
			printer("Back-Office-A5", fleet.PrinterTypeStandard, fleet.PrinterOnline),
		),
		status: func(call int) (*fleet.PrintJob, error) {
			return jobWith(fleet.JobCompleted, "FrontDesk-A4"), nil
		},
	}
	o := newTestOrchestrator(svc)
	defer o.Shutdown()

	results := make(chan Result, 1)
	snap, err := o.Start(StartRequest{
		Document:         testDoc,
		RequestedPrinter: "Front-Desk-A4",
		RequestedType:    fleet.PrinterTypeStandard,
		Notify:           func(r Result) { results <- r },
	})
	require.NoError(t, err)

	selection := waitForStatus(t, o, snap.ID, StatusPrinterSelection)
	require.Len(t, selection.Candidates, 2)
	require.Equal(t, "FrontDesk-A4", selection.Candidates[0].Printer.Name)
	require.Equal(t, "Back-Office-A5", selection.Candidates[1].Printer.Name)
	require.Equal(t, "FrontDesk-A4", selection.SelectedPrinter, "best candidate is pre-selected")

	// Dispatch must wait for the user; no submission happened yet.
	require.NotContains(t, svc.callLog(), "submit")

	require.NoError(t, o.ConfirmPrinter(snap.ID, "FrontDesk-A4"))

	res := <-results
	require.True(t, res.Success)
	require.Equal(t, "FrontDesk-A4", res.Destination)

	require.NotNil(t, svc.lastSubmitPrinter)
	require.Equal(t, "FrontDesk-A4", *svc.lastSubmitPrinter)
}

func TestCompletedSessionRefusesFurtherActions(t *testing.T) {
	svc := &fakeService{
		printerAvail: onlineFleet(printer("Front-Desk-A4", fleet.PrinterTypeStandard, fleet.PrinterOnline)),
		status: func(call int) (*fleet.PrintJob, error) {
			return jobWith(fleet.JobCompleted, "Front-Desk-A4"), nil
		},
	}
	o := newTestOrchestrator(svc)
	defer o.Shutdown()

	snap, err := o.Start(StartRequest{
		Document:         testDoc,
		RequestedPrinter: "Front-Desk-A4",
		RequestedType:    fleet.PrinterTypeStandard,
	})
	require.NoError(t, err)
	waitForStatus(t, o, snap.ID, StatusCompleted)

	require.ErrorIs(t, o.Retry(snap.ID), ErrSessionFinished)
	require.ErrorIs(t, o.ConfirmPrinter(snap.ID, "Front-Desk-A4"), ErrSessionFinished)
}

func TestConfirmPrinterRejectsUnknownCandidate(t *testing.T) {
	svc := &fakeService{
		printerAvail: onlineFleet(
			printer("FrontDesk-A4", fleet.PrinterTypeStandard, fleet.PrinterOnline),
		),
	}
	o := newTestOrchestrator(svc)
	defer o.Shutdown()

	snap, err := o.Start(StartRequest{
		Document:         testDoc,
		RequestedPrinter: "Front-Desk-A4",
		RequestedType:    fleet.PrinterTypeStandard,
	})
	require.NoError(t, err)

	waitForStatus(t, o, snap.ID, StatusPrinterSelection)
	err = o.ConfirmPrinter(snap.ID, "Mystery-Printer")
	require.ErrorIs(t, err, ErrUnknownPrinter)
}

func TestNoAgentsGoesStraightToFailed(t *testing.T) {
	svc := &fakeService{
		availability: func() (*fleet.Availability, error) {
			return &fleet.Availability{AgentsOnline: 0}, nil
		},
	}
	o := newTestOrchestrator(svc)
	defer o.Shutdown()

	snap, err := o.Start(StartRequest{Document: testDoc})
	require.NoError(t, err)

	failed := waitForStatus(t, o, snap.ID, StatusFailed)
	require.NotNil(t, failed.Fallback, "fallback must be offered")
	require.Contains(t, failed.Fallback.URL, "browser-print/invoice/inv-42/")

	require.Equal(t, []string{"availability"}, svc.callLog(),
		"no resolver or dispatcher calls when no agents are online")
}

func TestNoCompatiblePrintersDisablesRetry(t *testing.T) {
	svc := &fakeService{
		printerAvail: onlineFleet(),
	}
	o := newTestOrchestrator(svc)
	defer o.Shutdown()

	snap, err := o.Start(StartRequest{
		Document:         testDoc,
		RequestedPrinter: "Front-Desk-A4",
		RequestedType:    fleet.PrinterTypeStandard,
	})
	require.NoError(t, err)

	failed := waitForStatus(t, o, snap.ID, StatusFailed)
	require.Equal(t, "no compatible printers are available", failed.ErrorMessage)
	require.False(t, failed.CanRetry)
	require.NotNil(t, failed.Fallback)

	require.ErrorIs(t, o.Retry(snap.ID), ErrInvalidTransition)
}

func TestNoPOSPrintersMessage(t *testing.T) {
	svc := &fakeService{
		printerAvail: func() (*fleet.PrinterAvailability, error) {
			return &fleet.PrinterAvailability{RequiredPrinterType: fleet.PrinterTypePOS}, nil
		},
	}
	o := newTestOrchestrator(svc)
	defer o.Shutdown()

	snap, err := o.Start(StartRequest{
		Document:         fleet.DocumentRef{Type: fleet.DocReceipt, ID: "rcpt-1"},
		RequestedPrinter: "Counter-Thermal",
	})
	require.NoError(t, err)

	failed := waitForStatus(t, o, snap.ID, StatusFailed)
	require.Equal(t, "no POS/thermal printers are available", failed.ErrorMessage)
}

func TestLostConnectionWhilePrinting(t *testing.T) {
	svc := &fakeService{
		printerAvail: onlineFleet(printer("Front-Desk-A4", fleet.PrinterTypeStandard, fleet.PrinterOnline)),
		status: func(call int) (*fleet.PrintJob, error) {
			if call <= 2 {
				return jobWith(fleet.JobPrinting, "Front-Desk-A4"), nil
			}
			return nil, errors.New("connection reset")
		},
	}
	o := newTestOrchestrator(svc)
	defer o.Shutdown()

	results := make(chan Result, 1)
	snap, err := o.Start(StartRequest{
		Document:         testDoc,
		RequestedPrinter: "Front-Desk-A4",
		RequestedType:    fleet.PrinterTypeStandard,
		Notify:           func(r Result) { results <- r },
	})
	require.NoError(t, err)

	res := <-results
	require.False(t, res.Success)
	require.Equal(t, "lost connection to print service", res.Error)

	failed := waitForStatus(t, o, snap.ID, StatusFailed)
	require.Equal(t, "lost connection to print service", failed.ErrorMessage)
	require.True(t, failed.CanRetry)
}

func TestRemoteJobFailureSurfacesMessage(t *testing.T) {
	svc := &fakeService{
		printerAvail: onlineFleet(printer("Front-Desk-A4", fleet.PrinterTypeStandard, fleet.PrinterOnline)),
		status: func(call int) (*fleet.PrintJob, error) {
			job := jobWith(fleet.JobFailed, "")
			msg := "out of paper"
			job.ErrorMessage = &msg
			return job, nil
		},
	}
	o := newTestOrchestrator(svc)
	defer o.Shutdown()

	snap, err := o.Start(StartRequest{
		Document:         testDoc,
		RequestedPrinter: "Front-Desk-A4",
		RequestedType:    fleet.PrinterTypeStandard,
	})
	require.NoError(t, err)

	failed := waitForStatus(t, o, snap.ID, StatusFailed)
	require.Equal(t, "out of paper", failed.ErrorMessage)
	require.True(t, failed.CanRetry)
}

func TestRetryCapExhaustsAfterThreeRetries(t *testing.T) {
	svc := &fakeService{
		printerAvail: onlineFleet(printer("Front-Desk-A4", fleet.PrinterTypeStandard, fleet.PrinterOnline)),
		submit: func(printerName *string, copies int) (string, error) {
			return "", errors.New("http 503")
		},
	}
	o := newTestOrchestrator(svc)
	defer o.Shutdown()

	snap, err := o.Start(StartRequest{
		Document:         testDoc,
		RequestedPrinter: "Front-Desk-A4",
		RequestedType:    fleet.PrinterTypeStandard,
	})
	require.NoError(t, err)
	waitForStatus(t, o, snap.ID, StatusFailed)

	for i := 1; i <= 3; i++ {
		require.NoError(t, o.Retry(snap.ID))
		var failed Snapshot
		require.Eventually(t, func() bool {
			var err error
			failed, err = o.Session(snap.ID)
			return err == nil && failed.Status == StatusFailed && failed.RetryCount == i
		}, 2*time.Second, time.Millisecond)
	}

	final, err := o.Session(snap.ID)
	require.NoError(t, err)
	require.Equal(t, 3, final.RetryCount)
	require.False(t, final.CanRetry, "retry action is exhausted, not hidden")

	require.ErrorIs(t, o.Retry(snap.ID), ErrRetriesExhausted)

	// Cancel and fallback remain available.
	url, err := o.FallbackURL(snap.ID)
	require.NoError(t, err)
	require.NotEmpty(t, url)
	require.NoError(t, o.Cancel(snap.ID))
}

func TestRetryRerunsWholeFlow(t *testing.T) {
	svc := &fakeService{
		printerAvail: onlineFleet(printer("Front-Desk-A4", fleet.PrinterTypeStandard, fleet.PrinterOnline)),
		status: func(call int) (*fleet.PrintJob, error) {
			if call == 1 {
				return nil, errors.New("connection reset")
			}
			return jobWith(fleet.JobCompleted, "Front-Desk-A4"), nil
		},
	}
	o := newTestOrchestrator(svc)
	defer o.Shutdown()

	snap, err := o.Start(StartRequest{
		Document:         testDoc,
		RequestedPrinter: "Front-Desk-A4",
		RequestedType:    fleet.PrinterTypeStandard,
	})
	require.NoError(t, err)
	waitForStatus(t, o, snap.ID, StatusFailed)

	require.NoError(t, o.Retry(snap.ID))
	final := waitForStatus(t, o, snap.ID, StatusCompleted)
	require.Equal(t, 1, final.RetryCount)

	// The retry went back through availability and resolution, not just
	// the poll.
	calls := svc.callLog()
	count := 0
	for _, c := range calls {
		if c == "availability" {
			count++
		}
	}
	require.Equal(t, 2, count)
}

func TestCancelDiscardsSession(t *testing.T) {
	svc := &fakeService{
		printerAvail: onlineFleet(
			printer("FrontDesk-A4", fleet.PrinterTypeStandard, fleet.PrinterOnline),
		),
	}
	o := newTestOrchestrator(svc)
	defer o.Shutdown()

	snap, err := o.Start(StartRequest{
		Document:         testDoc,
		RequestedPrinter: "Front-Desk-A4",
		RequestedType:    fleet.PrinterTypeStandard,
	})
	require.NoError(t, err)
	waitForStatus(t, o, snap.ID, StatusPrinterSelection)

	require.NoError(t, o.Cancel(snap.ID))

	_, err = o.Session(snap.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.ErrorIs(t, o.Cancel(snap.ID), ErrSessionNotFound)
}

func TestStartValidation(t *testing.T) {
	o := newTestOrchestrator(&fakeService{})
	defer o.Shutdown()

	_, err := o.Start(StartRequest{Document: fleet.DocumentRef{Type: "memo", ID: "m-1"}})
	require.Error(t, err)

	_, err = o.Start(StartRequest{Document: fleet.DocumentRef{Type: fleet.DocInvoice}})
	require.Error(t, err)

	_, err = o.Start(StartRequest{Document: testDoc, Copies: 100})
	require.ErrorIs(t, err, ErrCopiesOutOfRange)
}

func TestSessionsAreIndependent(t *testing.T) {
	svc := &fakeService{
		printerAvail: onlineFleet(printer("Front-Desk-A4", fleet.PrinterTypeStandard, fleet.PrinterOnline)),
		status: func(call int) (*fleet.PrintJob, error) {
			return jobWith(fleet.JobCompleted, "Front-Desk-A4"), nil
		},
	}
	o := newTestOrchestrator(svc)
	defer o.Shutdown()

	a, err := o.Start(StartRequest{Document: testDoc, RequestedPrinter: "Front-Desk-A4", RequestedType: fleet.PrinterTypeStandard})
	require.NoError(t, err)
	b, err := o.Start(StartRequest{
		Document:         fleet.DocumentRef{Type: fleet.DocQuotation, ID: "q-9"},
		RequestedPrinter: "Front-Desk-A4",
		RequestedType:    fleet.PrinterTypeStandard,
	})
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	waitForStatus(t, o, a.ID, StatusCompleted)
	waitForStatus(t, o, b.ID, StatusCompleted)
}
