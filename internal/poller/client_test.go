// internal/poller/client_test.go
package poller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPClient_StartCheckout(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/automation/checkout", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "job_id": "job-77"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, zap.NewNop())
	jobID, err := c.StartCheckout(context.Background(), CheckoutRequest{
		CheckoutURL: "http://shop.test",
		ProductID:   "SKU-1",
		ProductName: "headphones",
	})

	require.NoError(t, err)
	assert.Equal(t, "job-77", jobID)
	assert.Equal(t, "http://shop.test", received["checkout_url"])
	info := received["product_info"].(map[string]any)
	assert.Equal(t, "SKU-1", info["id"])
}

func TestHTTPClient_StartCheckoutRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "checkout_url is required"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, zap.NewNop())
	_, err := c.StartCheckout(context.Background(), CheckoutRequest{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkout_url is required")
}

func TestHTTPClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/automation/status/job-5", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success":  true,
			"status":   "running",
			"progress": 60,
			"logs":     []string{"Shipping information completed"},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, zap.NewNop())
	report, err := c.Status(context.Background(), "job-5")

	require.NoError(t, err)
	assert.Equal(t, "running", report.Status)
	assert.Equal(t, 60, report.Progress)
	assert.Equal(t, []string{"Shipping information completed"}, report.Logs)
	assert.False(t, report.Terminal())
}

func TestHTTPClient_StatusNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "job not found"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, zap.NewNop())
	_, err := c.Status(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrJobNotFound)
}
