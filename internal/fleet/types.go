package fleet

import (
	"fmt"
	"time"
)

// DocumentType identifies the business document being printed. The print
// service selects rendering and the required printer class from it.
type DocumentType string

const (
	DocQuotation     DocumentType = "quotation"
	DocInvoice       DocumentType = "invoice"
	DocOrder         DocumentType = "order"
	DocPurchaseOrder DocumentType = "purchase_order"
	DocReceipt       DocumentType = "receipt"
	DocOrderReceipt  DocumentType = "order_receipt"
	DocJobTicket     DocumentType = "job_ticket"
	DocDispatchNote  DocumentType = "dispatch_note"
	DocCreditNote    DocumentType = "credit_note"
)

var documentTypes = map[DocumentType]bool{
	DocQuotation:     true,
	DocInvoice:       true,
	DocOrder:         true,
	DocPurchaseOrder: true,
	DocReceipt:       true,
	DocOrderReceipt:  true,
	DocJobTicket:     true,
	DocDispatchNote:  true,
	DocCreditNote:    true,
}

func (d DocumentType) Valid() bool {
	return documentTypes[d]
}

// ReceiptLike reports whether the document prints on a POS/thermal device
// and routes through the payment-receipt submit path.
func (d DocumentType) ReceiptLike() bool {
	return d == DocReceipt || d == DocOrderReceipt
}

// RequiredPrinterType returns the printer class a document type needs when
// the caller did not request one explicitly.
func RequiredPrinterType(d DocumentType) PrinterType {
	if d.ReceiptLike() {
		return PrinterTypePOS
	}
	return PrinterTypeStandard
}

var submitPathByType = map[DocumentType]string{
	DocQuotation:     "quotations/%s/print",
	DocInvoice:       "invoices/%s/print",
	DocOrder:         "orders/%s/print",
	DocPurchaseOrder: "purchase-orders/%s/print",
	DocReceipt:       "payments/%s/print-receipt",
	DocOrderReceipt:  "payments/%s/print-receipt",
	DocJobTicket:     "job-tickets/%s/print",
	DocDispatchNote:  "dispatch-notes/%s/print",
	DocCreditNote:    "credit-notes/%s/print",
}

// SubmitPath returns the print-service path that accepts a submission for
// the given document.
func SubmitPath(d DocumentType, documentID string) (string, error) {
	pattern, ok := submitPathByType[d]
	if !ok {
		return "", fmt.Errorf("no submit path for document type %q", d)
	}
	return fmt.Sprintf(pattern, documentID), nil
}

// DocumentRef is the caller-supplied identity of the document to print.
// Immutable for the lifetime of one print attempt.
type DocumentRef struct {
	Type  DocumentType `json:"document_type"`
	ID    string       `json:"document_id"`
	Title string       `json:"title"`
}

type PrinterType string

const (
	PrinterTypeStandard PrinterType = "standard"
	PrinterTypePOS      PrinterType = "pos"
)

type PrinterStatus string

const (
	PrinterOnline  PrinterStatus = "online"
	PrinterOffline PrinterStatus = "offline"
	PrinterBusy    PrinterStatus = "busy"
	PrinterError   PrinterStatus = "error"
)

// Printer is a physical output device exposed by an agent. Snapshots are
// fetched fresh on every resolution and never cached across sessions.
type Printer struct {
	Name          string         `json:"name"`
	Type          PrinterType    `json:"type"`
	Status        PrinterStatus  `json:"status"`
	Capabilities  map[string]any `json:"capabilities,omitempty"`
	OwningAgentID string         `json:"owning_agent_id"`
}

func (p Printer) Online() bool {
	return p.Status == PrinterOnline
}

type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
	AgentError   AgentStatus = "error"
)

// Agent is a remote print-service client exposing printers to the fleet.
type Agent struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Address       string      `json:"address"`
	Status        AgentStatus `json:"status"`
	LastHeartbeat *time.Time  `json:"last_heartbeat,omitempty"`
	PrinterCounts int         `json:"printer_counts"`
}

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobAssigned  JobStatus = "assigned"
	JobPrinting  JobStatus = "printing"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further status transitions can occur.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// PrintJob is the remote service's record of one submitted job. The core
// only ever reads it.
type PrintJob struct {
	ID               string     `json:"id"`
	Status           JobStatus  `json:"status"`
	RequestedPrinter *string    `json:"requested_printer,omitempty"`
	UsedPrinterName  *string    `json:"used_printer_name,omitempty"`
	Copies           int        `json:"copies"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Availability is the print service's answer to "can anything print this
// document type right now".
type Availability struct {
	AgentsOnline                int     `json:"agents_online"`
	CompatiblePrintersAvailable int     `json:"compatible_printers_available"`
	ShouldFallback              bool    `json:"should_use_fallback"`
	FallbackReason              *string `json:"fallback_reason,omitempty"`
}

// PrinterAvailability is the live fleet snapshot for one document type.
type PrinterAvailability struct {
	DefaultPrinterAvailable bool        `json:"defaultPrinterAvailable"`
	AvailablePrinters       []Printer   `json:"availablePrinters"`
	RequiredPrinterType     PrinterType `json:"requiredPrinterType"`
}
