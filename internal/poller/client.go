// internal/poller/client.go

// Package poller is the client side of the job protocol: it starts a
// checkout over HTTP and polls its status until the job reaches a terminal
// state or the polling budget runs out.
package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrJobNotFound marks a status poll for an id the service does not know.
var ErrJobNotFound = errors.New("job not found")

const (
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// CheckoutRequest describes the checkout to start.
type CheckoutRequest struct {
	CheckoutURL        string
	ProductID          string
	ProductName        string
	ShippingPreference string
}

// StatusReport is one observed snapshot of a job.
type StatusReport struct {
	Status   string
	Progress int
	Logs     []string
	Error    string
}

// Terminal reports whether the job has finished, successfully or not.
func (r StatusReport) Terminal() bool {
	return r.Status == statusCompleted || r.Status == statusFailed
}

// Succeeded reports whether the job completed successfully.
func (r StatusReport) Succeeded() bool {
	return r.Status == statusCompleted
}

// Client talks to the automation service.
type Client interface {
	StartCheckout(ctx context.Context, req CheckoutRequest) (jobID string, err error)
	Status(ctx context.Context, jobID string) (StatusReport, error)
}

// HTTPClient implements Client against the service's JSON API.
type HTTPClient struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

// NewHTTPClient creates a client for the service at baseURL.
func NewHTTPClient(baseURL string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		base:   baseURL,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger.Named("client"),
	}
}

type startPayload struct {
	CheckoutURL        string       `json:"checkout_url"`
	ProductInfo        *productInfo `json:"product_info,omitempty"`
	ShippingPreference string       `json:"shipping_preference,omitempty"`
}

type productInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type startResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	Error   string `json:"error"`
}

type statusResponse struct {
	Success  bool     `json:"success"`
	Status   string   `json:"status"`
	Progress int      `json:"progress"`
	Logs     []string `json:"logs"`
	Error    string   `json:"error"`
}

// StartCheckout submits the checkout and returns the job id to poll.
func (c *HTTPClient) StartCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	payload := startPayload{
		CheckoutURL:        req.CheckoutURL,
		ShippingPreference: req.ShippingPreference,
	}
	if req.ProductID != "" || req.ProductName != "" {
		payload.ProductInfo = &productInfo{ID: req.ProductID, Name: req.ProductName}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/automation/checkout", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("starting checkout: %w", err)
	}
	defer resp.Body.Close()

	var decoded startResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding checkout response: %w", err)
	}
	if resp.StatusCode >= 300 || !decoded.Success {
		reason := decoded.Error
		if reason == "" {
			reason = resp.Status
		}
		return "", fmt.Errorf("checkout rejected: %s", reason)
	}
	return decoded.JobID, nil
}

// Status fetches the current snapshot of a job.
func (c *HTTPClient) Status(ctx context.Context, jobID string) (StatusReport, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/automation/status/"+jobID, nil)
	if err != nil {
		return StatusReport{}, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return StatusReport{}, fmt.Errorf("fetching job status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return StatusReport{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if resp.StatusCode >= 300 {
		return StatusReport{}, fmt.Errorf("fetching job status: %s", resp.Status)
	}

	var decoded statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return StatusReport{}, fmt.Errorf("decoding job status: %w", err)
	}
	return StatusReport{
		Status:   decoded.Status,
		Progress: decoded.Progress,
		Logs:     decoded.Logs,
		Error:    decoded.Error,
	}, nil
}
