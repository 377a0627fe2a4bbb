package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Client talks to the remote print service: the agent/printer registry,
// job submission paths, and job status. It holds no fleet state of its own.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// CheckAgentAvailability asks the print service whether any agent/printer
// combination can serve the given document type right now.
func (c *Client) CheckAgentAvailability(ctx context.Context, docType DocumentType) (*Availability, error) {
	body := map[string]string{"document_type": string(docType)}
	var out Availability
	if err := c.doJSON(ctx, http.MethodPost, "print-service/check-availability", body, &out); err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}
	return &out, nil
}

// PrinterAvailability fetches the live fleet snapshot for a document type.
// The call is idempotent, so transient failures are retried once before
// giving up.
func (c *Client) PrinterAvailability(ctx context.Context, docType DocumentType, forceRefresh bool) (*PrinterAvailability, error) {
	path := fmt.Sprintf("printers/check-availability?document_type=%s&force_refresh=%t",
		url.QueryEscape(string(docType)), forceRefresh)

	var out PrinterAvailability
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(2),
	)
	err := r.Do(func() error {
		return c.doJSON(ctx, http.MethodGet, path, nil, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("printer availability: %w", err)
	}
	return &out, nil
}

type submitRequest struct {
	PrinterName *string `json:"printer_name"`
	Copies      int     `json:"copies"`
}

type submitResponse struct {
	PrintJobID string `json:"print_job_id"`
}

// SubmitPrintJob posts a print request for the document and returns the
// remote job id. A nil printerName lets the service use the operator's
// configured default.
func (c *Client) SubmitPrintJob(ctx context.Context, doc DocumentRef, printerName *string, copies int) (string, error) {
	path, err := SubmitPath(doc.Type, doc.ID)
	if err != nil {
		return "", err
	}

	var out submitResponse
	if err := c.doJSON(ctx, http.MethodPost, path, submitRequest{PrinterName: printerName, Copies: copies}, &out); err != nil {
		return "", fmt.Errorf("submit print job: %w", err)
	}
	if out.PrintJobID == "" {
		return "", fmt.Errorf("submit print job: service returned no job id")
	}
	return out.PrintJobID, nil
}

// JobStatus fetches the current state of a submitted job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*PrintJob, error) {
	var out PrintJob
	path := fmt.Sprintf("printjobs/%s/status", url.PathEscape(jobID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("job status: %w", err)
	}
	return &out, nil
}

// ListAgents returns the registered print agents.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	if err := c.doJSON(ctx, http.MethodGet, "agents", nil, &out); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return out, nil
}

// ListPrinters returns every printer the fleet currently exposes.
func (c *Client) ListPrinters(ctx context.Context) ([]Printer, error) {
	var out []Printer
	if err := c.doJSON(ctx, http.MethodGet, "printers", nil, &out); err != nil {
		return nil, fmt.Errorf("list printers: %w", err)
	}
	return out, nil
}

type serviceError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var svcErr serviceError
		if decErr := json.NewDecoder(resp.Body).Decode(&svcErr); decErr == nil && svcErr.Message != "" {
			return fmt.Errorf("http %d: %s", resp.StatusCode, svcErr.Message)
		}
		return fmt.Errorf("http %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
