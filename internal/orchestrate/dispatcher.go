package orchestrate

import (
	"context"

	"go.uber.org/zap"

	"github.com/erpdesk/printflow/internal/fleet"
)

const (
	minCopies = 1
	maxCopies = 99
)

// Dispatcher submits print requests and hands back the remote job id.
type Dispatcher struct {
	svc    PrintService
	logger *zap.Logger
}

func NewDispatcher(svc PrintService, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{svc: svc, logger: logger}
}

// Submit sends the job to the print service. A nil printerName means "use
// the operator's configured default" and is only valid when the resolver
// reported the default available. Copies outside [1,99] are a caller
// contract violation and are rejected, not clamped.
func (d *Dispatcher) Submit(ctx context.Context, doc fleet.DocumentRef, printerName *string, copies int) (string, error) {
	if copies < minCopies || copies > maxCopies {
		return "", &SubmissionError{Message: ErrCopiesOutOfRange.Error(), Err: ErrCopiesOutOfRange}
	}

	jobID, err := d.svc.SubmitPrintJob(ctx, doc, printerName, copies)
	if err != nil {
		d.logger.Warn("print job submission failed",
			zap.String("document_type", string(doc.Type)),
			zap.String("document_id", doc.ID),
			zap.Error(err))
		return "", &SubmissionError{Message: err.Error(), Err: err}
	}

	d.logger.Info("print job submitted",
		zap.String("job_id", jobID),
		zap.String("document_type", string(doc.Type)),
		zap.String("document_id", doc.ID),
		zap.Int("copies", copies))
	return jobID, nil
}
