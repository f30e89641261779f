package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const cacheMaxAge = "public, max-age=300"

type APIHandlers struct {
	aggregator *services.Aggregator
	logger     *slog.Logger
}

func NewAPIHandlers(aggregator *services.Aggregator, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		aggregator: aggregator,
		logger:     logger,
	}
}

// ViewResult is one entry of a batch response. Exactly one of View and
// Error is set.
type ViewResult struct {
	ID    models.ViewID    `json:"id"`
	View  *models.View     `json:"view,omitempty"`
	Error *errors.AppError `json:"error,omitempty"`
}

func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	headers := map[string]string{
		"Cache-Control": cacheMaxAge,
	}

	errors.WriteSuccessWithHeaders(w, h.aggregator.Store().Options(), headers)
}

func (h *APIHandlers) HandleView(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	id := models.ViewID(r.PathValue("view"))

	if services.Dependencies(id) == nil {
		errors.WriteError(w, h.logger, errors.NotFound("unknown view: "+string(id)), requestID)
		return
	}

	sel, err := bindSelection(r, defaultSignals(h.aggregator))
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	_, span := observability.StartSpan(r.Context(), "view "+string(id))
	view, err := h.aggregator.Compute(id, sel)
	if err != nil {
		span.SetError(err)
		span.End(h.logger)
		errors.WriteError(w, h.logger, viewError(err), requestID)
		return
	}
	span.SetTag("rows", strconv.Itoa(view.Len()))
	span.End(h.logger)

	errors.WriteSuccess(w, view)
}

func (h *APIHandlers) HandleViews(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	sel, err := bindSelection(r, defaultSignals(h.aggregator))
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	changed, err := parseChanged(r.URL.Query().Get("changed"))
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	results := h.aggregator.Recompute(r.Context(), sel, changed...)
	data := make([]ViewResult, 0, len(results))
	for _, res := range results {
		entry := ViewResult{ID: res.ID}
		if res.Err != nil {
			entry.Error = viewError(res.Err)
		} else {
			entry.View = &res.View
		}
		data = append(data, entry)
	}

	errors.WriteSuccess(w, data)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
		"records":   h.aggregator.Store().Len(),
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.aggregator.Store().Stats())
}
