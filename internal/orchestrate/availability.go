package orchestrate

import (
	"context"

	"go.uber.org/zap"

	"github.com/erpdesk/printflow/internal/fleet"
)

// AvailabilityResult is the checker's verdict for one document type.
type AvailabilityResult struct {
	AgentsOnline                int
	CompatiblePrintersAvailable int
	ShouldFallback              bool
	FallbackReason              string
}

// AvailabilityChecker decides whether any agent/printer combination can
// serve a document type, and whether the caller should go straight to the
// manual fallback.
type AvailabilityChecker struct {
	svc    PrintService
	logger *zap.Logger
}

func NewAvailabilityChecker(svc PrintService, logger *zap.Logger) *AvailabilityChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityChecker{svc: svc, logger: logger}
}

// Check never assumes availability on failure: if the print service cannot
// be reached, the result demands fallback rather than stranding the user on
// a dead path.
func (a *AvailabilityChecker) Check(ctx context.Context, docType fleet.DocumentType) AvailabilityResult {
	avail, err := a.svc.CheckAgentAvailability(ctx, docType)
	if err != nil {
		a.logger.Warn("availability check failed, treating as fallback",
			zap.String("document_type", string(docType)),
			zap.Error(err))
		return AvailabilityResult{
			ShouldFallback: true,
			FallbackReason: msgServiceUnreachable,
		}
	}

	result := AvailabilityResult{
		AgentsOnline:                avail.AgentsOnline,
		CompatiblePrintersAvailable: avail.CompatiblePrintersAvailable,
		ShouldFallback:              avail.ShouldFallback,
	}
	if avail.FallbackReason != nil {
		result.FallbackReason = *avail.FallbackReason
	}
	if avail.AgentsOnline == 0 {
		result.ShouldFallback = true
		if result.FallbackReason == "" {
			result.FallbackReason = "no print agents are online"
		}
	}
	return result
}
