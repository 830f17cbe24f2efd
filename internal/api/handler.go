// internal/api/handler.go

// Package api exposes the automation service over HTTP: an endpoint that
// starts a checkout job and a status endpoint the poller consumes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cartpilot-io/cartpilot/internal/agent"
	"github.com/cartpilot-io/cartpilot/internal/config"
	"github.com/cartpilot-io/cartpilot/internal/jobs"
)

// JobStarter launches a checkout job and returns its id.
type JobStarter interface {
	Start(ctx context.Context, opts agent.RunOptions) string
}

// JobReader looks up a job snapshot by id.
type JobReader interface {
	Get(id string) (jobs.Job, bool)
}

type checkoutRequest struct {
	CheckoutURL string       `json:"checkout_url"`
	ProductInfo *productInfo `json:"product_info"`

	ShippingInfo       *shippingPayload `json:"shipping_info,omitempty"`
	PaymentInfo        *paymentPayload  `json:"payment_info,omitempty"`
	ShippingPreference string           `json:"shipping_preference,omitempty"`
}

type productInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type shippingPayload struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Email   string `json:"email"`
}

type paymentPayload struct {
	CardHolder string `json:"card_holder"`
	CardNumber string `json:"card_number"`
	CardExpiry string `json:"card_expiry"`
	CardCVV    string `json:"card_cvv"`
}

type checkoutResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
}

type statusResponse struct {
	Success  bool     `json:"success"`
	Status   string   `json:"status"`
	Progress int      `json:"progress"`
	Logs     []string `json:"logs"`
	Error    string   `json:"error,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewHandler builds the service's route tree.
func NewHandler(starter JobStarter, reader JobReader, cfg config.CheckoutConfig, logger *zap.Logger) http.Handler {
	logger = logger.Named("api")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/automation/checkout", handleStartCheckout(starter, cfg, logger))
	r.Get("/api/automation/status/{jobID}", handleJobStatus(reader, logger))

	return r
}

func handleStartCheckout(starter JobStarter, cfg config.CheckoutConfig, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body checkoutRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, logger, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if body.CheckoutURL == "" {
			writeJSON(w, logger, http.StatusBadRequest, errorResponse{Error: "checkout_url is required"})
			return
		}

		opts := agent.RunOptions{
			BaseURL:            body.CheckoutURL,
			ImagePath:          cfg.SampleImage,
			ArtifactsDir:       cfg.ArtifactsDir,
			ShippingPreference: agent.Preference(cfg.ShippingPreference),
		}
		if body.ProductInfo != nil {
			opts.ProductID = body.ProductInfo.ID
			opts.Query = body.ProductInfo.Name
		}
		if body.ShippingPreference != "" {
			opts.ShippingPreference = agent.Preference(body.ShippingPreference)
		}
		if s := body.ShippingInfo; s != nil {
			opts.Shipping = agent.ShippingInfo{
				Name: s.Name, Street: s.Street, City: s.City,
				State: s.State, Zip: s.Zip, Country: s.Country, Email: s.Email,
			}
		}
		if p := body.PaymentInfo; p != nil {
			opts.Payment = agent.PaymentInfo{
				CardHolder: p.CardHolder, CardNumber: p.CardNumber,
				CardExpiry: p.CardExpiry, CardCVV: p.CardCVV,
			}
		}

		// The job outlives this request: its lifetime is bound to the server,
		// not to the caller's connection.
		jobID := starter.Start(context.WithoutCancel(req.Context()), opts)
		logger.Info("Checkout job started.", zap.String("job_id", jobID), zap.String("checkout_url", body.CheckoutURL))
		writeJSON(w, logger, http.StatusAccepted, checkoutResponse{Success: true, JobID: jobID})
	}
}

func handleJobStatus(reader JobReader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		jobID := chi.URLParam(req, "jobID")

		job, ok := reader.Get(jobID)
		if !ok {
			writeJSON(w, logger, http.StatusNotFound, errorResponse{Error: "job not found"})
			return
		}

		logs := job.Logs
		if logs == nil {
			logs = []string{}
		}
		writeJSON(w, logger, http.StatusOK, statusResponse{
			Success:  true,
			Status:   string(job.Status),
			Progress: job.Progress,
			Logs:     logs,
			Error:    job.Error,
		})
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("Could not encode response.", zap.Error(err))
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			logger.Debug("Request handled.",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
