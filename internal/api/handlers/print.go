package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erpdesk/printflow/internal/fleet"
	"github.com/erpdesk/printflow/internal/orchestrate"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type StartPrintRequest struct {
	DocumentType string `json:"document_type" binding:"required"`
	DocumentID   string `json:"document_id" binding:"required"`
	Title        string `json:"title"`
	PrinterName  string `json:"printer_name"`
	PrinterType  string `json:"printer_type" binding:"omitempty,oneof=standard pos"`
	Copies       int    `json:"copies" binding:"omitempty,min=1,max=99"`
}

type ConfirmPrinterRequest struct {
	PrinterName string `json:"printer_name" binding:"required"`
}

type FallbackResponse struct {
	URL string `json:"url"`
}

type PrintHandler struct {
	orchestrator *orchestrate.Orchestrator
}

func NewPrintHandler(orchestrator *orchestrate.Orchestrator) *PrintHandler {
	return &PrintHandler{orchestrator: orchestrator}
}

// StartPrint opens a new orchestration session for a document.
func (h *PrintHandler) StartPrint(c *gin.Context) {
	var req StartPrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	snap, err := h.orchestrator.Start(orchestrate.StartRequest{
		Document: fleet.DocumentRef{
			Type:  fleet.DocumentType(req.DocumentType),
			ID:    req.DocumentID,
			Title: req.Title,
		},
		Copies:           req.Copies,
		RequestedPrinter: req.PrinterName,
		RequestedType:    fleet.PrinterType(req.PrinterType),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, snap)
}

// GetSession returns the current session snapshot.
func (h *PrintHandler) GetSession(c *gin.Context) {
	snap, err := h.orchestrator.Session(c.Param("id"))
	if err != nil {
		h.writeOrchestratorError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ConfirmPrinter confirms a substitute printer from the candidate list.
func (h *PrintHandler) ConfirmPrinter(c *gin.Context) {
	var req ConfirmPrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	if err := h.orchestrator.ConfirmPrinter(c.Param("id"), req.PrinterName); err != nil {
		h.writeOrchestratorError(c, err)
		return
	}

	snap, err := h.orchestrator.Session(c.Param("id"))
	if err != nil {
		h.writeOrchestratorError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// RetryPrint re-runs a failed session from the availability check.
func (h *PrintHandler) RetryPrint(c *gin.Context) {
	if err := h.orchestrator.Retry(c.Param("id")); err != nil {
		h.writeOrchestratorError(c, err)
		return
	}

	snap, err := h.orchestrator.Session(c.Param("id"))
	if err != nil {
		h.writeOrchestratorError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// CancelPrint tears the session down and discards it.
func (h *PrintHandler) CancelPrint(c *gin.Context) {
	if err := h.orchestrator.Cancel(c.Param("id")); err != nil {
		h.writeOrchestratorError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// FallbackLink returns the browser-print URL for the session's document.
func (h *PrintHandler) FallbackLink(c *gin.Context) {
	url, err := h.orchestrator.FallbackURL(c.Param("id"))
	if err != nil {
		h.writeOrchestratorError(c, err)
		return
	}
	c.JSON(http.StatusOK, FallbackResponse{URL: url})
}

func (h *PrintHandler) writeOrchestratorError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orchestrate.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Print session not found",
		})
	case errors.Is(err, orchestrate.ErrRetriesExhausted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "retries_exhausted",
			Message: "Retry limit reached; cancel or use the browser fallback",
		})
	case errors.Is(err, orchestrate.ErrSessionFinished):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "session_finished",
			Message: err.Error(),
		})
	case errors.Is(err, orchestrate.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "invalid_state",
			Message: err.Error(),
		})
	case errors.Is(err, orchestrate.ErrUnknownPrinter):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unknown_printer",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}
