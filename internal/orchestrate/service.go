package orchestrate

import (
	"context"

	"github.com/erpdesk/printflow/internal/fleet"
)

// PrintService is the slice of the remote print service the core consumes.
// *fleet.Client satisfies it; tests substitute fakes.
type PrintService interface {
	CheckAgentAvailability(ctx context.Context, docType fleet.DocumentType) (*fleet.Availability, error)
	PrinterAvailability(ctx context.Context, docType fleet.DocumentType, forceRefresh bool) (*fleet.PrinterAvailability, error)
	SubmitPrintJob(ctx context.Context, doc fleet.DocumentRef, printerName *string, copies int) (string, error)
	JobStatus(ctx context.Context, jobID string) (*fleet.PrintJob, error)
}
