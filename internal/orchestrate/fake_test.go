package orchestrate

import (
	"context"
	"errors"
	"sync"

	"github.com/erpdesk/printflow/internal/fleet"
)

// fakeService scripts the remote print service and records which endpoints
// were hit, in order.
type fakeService struct {
	mu          sync.Mutex
	calls       []string
	statusCalls int

	availability func() (*fleet.Availability, error)
	printerAvail func() (*fleet.PrinterAvailability, error)
	submit       func(printerName *string, copies int) (string, error)
	status       func(call int) (*fleet.PrintJob, error)

	lastSubmitPrinter *string
	lastSubmitCopies  int
}

func (f *fakeService) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeService) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeService) CheckAgentAvailability(ctx context.Context, docType fleet.DocumentType) (*fleet.Availability, error) {
	f.record("availability")
	if f.availability == nil {
		return &fleet.Availability{AgentsOnline: 1, CompatiblePrintersAvailable: 1}, nil
	}
	return f.availability()
}

func (f *fakeService) PrinterAvailability(ctx context.Context, docType fleet.DocumentType, forceRefresh bool) (*fleet.PrinterAvailability, error) {
	f.record("printer_availability")
	if f.printerAvail == nil {
		return nil, errors.New("not scripted")
	}
	return f.printerAvail()
}

func (f *fakeService) SubmitPrintJob(ctx context.Context, doc fleet.DocumentRef, printerName *string, copies int) (string, error) {
	f.record("submit")
	f.mu.Lock()
	f.lastSubmitPrinter = printerName
	f.lastSubmitCopies = copies
	f.mu.Unlock()
	if f.submit == nil {
		return "job-1", nil
	}
	return f.submit(printerName, copies)
}

func (f *fakeService) JobStatus(ctx context.Context, jobID string) (*fleet.PrintJob, error) {
	f.record("status")
	f.mu.Lock()
	f.statusCalls++
	n := f.statusCalls
	f.mu.Unlock()
	if f.status == nil {
		return &fleet.PrintJob{ID: jobID, Status: fleet.JobCompleted}, nil
	}
	return f.status(n)
}

func onlineFleet(printers ...fleet.Printer) func() (*fleet.PrinterAvailability, error) {
	return func() (*fleet.PrinterAvailability, error) {
		return &fleet.PrinterAvailability{
			AvailablePrinters:   printers,
			RequiredPrinterType: fleet.PrinterTypeStandard,
		}, nil
	}
}

func jobWith(status fleet.JobStatus, printerName string) *fleet.PrintJob {
	job := &fleet.PrintJob{ID: "job-1", Status: status}
	if printerName != "" {
		job.UsedPrinterName = &printerName
	}
	return job
}
