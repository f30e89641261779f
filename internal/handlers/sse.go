package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

const noDataMessage = "No data for this selection"

type SSEHandlers struct {
	aggregator *services.Aggregator
	logger     *slog.Logger
}

func NewSSEHandlers(aggregator *services.Aggregator, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		aggregator: aggregator,
		logger:     logger,
	}
}

// viewSignals is the signal patch sent to the page. Selection is omitted on
// updates so the browser keeps what the user typed.
type viewSignals struct {
	*models.Signals
	Views map[models.ViewID]*models.View `json:"views"`
}

// HandleInit patches the default selection and all four views.
func (h *SSEHandlers) HandleInit(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	sel := h.aggregator.Store().DefaultSelection()
	signals := models.NewSignals(sel)
	results := h.aggregator.Recompute(r.Context(), sel)

	h.patchResults(r.Context(), sse, &signals, results)
	flush(w)
}

// HandleUpdate reads the selection from the datastar signals and patches
// only the views that depend on the changed input.
func (h *SSEHandlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var signals models.Signals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid signals"), requestID)
		return
	}

	changed, err := parseChanged(r.URL.Query().Get("changed"))
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	sse := datastar.NewSSE(w, r)

	sel, err := validateSignals(signals)
	if err != nil {
		appErr := errors.AsAppError(err)
		h.logger.Warn("invalid selection",
			"field", appErr.Field,
			"error", appErr.Message,
			"request_id", requestID,
		)
		h.patch(r.Context(), sse, templates.SelectionNotice(appErr.Message))
		flush(w)
		return
	}

	results := h.aggregator.Recompute(r.Context(), sel, changed...)
	h.patch(r.Context(), sse, templates.SelectionNotice(""))
	h.patchResults(r.Context(), sse, nil, results)
	flush(w)
}

func (h *SSEHandlers) patchResults(ctx context.Context, sse *datastar.ServerSentEventGenerator, selection *models.Signals, results []services.Result) {
	logger := observability.LoggerFrom(ctx, h.logger)
	payload := viewSignals{
		Signals: selection,
		Views:   make(map[models.ViewID]*models.View, len(results)),
	}

	for _, res := range results {
		_, span := observability.StartSpan(ctx, "render "+string(res.ID))

		if res.Err != nil {
			span.SetError(res.Err)
			payload.Views[res.ID] = nil
			h.patch(ctx, sse, templates.ViewNotice(res.ID, noticeFor(res.Err)))
			span.End(logger)
			continue
		}

		view := res.View
		payload.Views[res.ID] = &view
		span.SetTag("rows", strconv.Itoa(view.Len()))
		h.patch(ctx, sse, templates.ViewTable(view))
		span.End(logger)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("marshal view signals", "error", err)
		return
	}
	if err := sse.PatchSignals(data); err != nil {
		logger.Error("patch view signals", "error", err)
	}
}

func (h *SSEHandlers) patch(ctx context.Context, sse *datastar.ServerSentEventGenerator, c templ.Component) {
	html, err := templates.Render(ctx, c)
	if err != nil {
		h.logger.Error("render fragment", "error", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		h.logger.Error("patch elements", "error", err)
	}
}

// noticeFor is the message shown in place of a view that failed.
func noticeFor(err error) string {
	var empty *services.EmptySelectionError
	if stderrors.As(err, &empty) {
		return noDataMessage
	}
	return viewError(err).Message
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
