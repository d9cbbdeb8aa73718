package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"commercial-analytics/internal/errors"
	"commercial-analytics/internal/observability"
	"commercial-analytics/internal/services"
)

const cacheControl = "private, max-age=60"

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// parseQuery reads the window from ?start=&end= (YYYY-MM-DD) or ?month=YYYY-MM.
// No parameters selects the latest month to date.
func parseQuery(r *http.Request) (services.Query, error) {
	v := r.URL.Query()
	var q services.Query

	if month := v.Get("month"); month != "" {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			return q, errors.BadRequestWrap(err, "month must be YYYY-MM")
		}
		q.Start = t
		q.End = t.AddDate(0, 1, -1)
		return q, nil
	}

	if s := v.Get("start"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return q, errors.BadRequestWrap(err, "start must be YYYY-MM-DD")
		}
		q.Start = t
	}
	if s := v.Get("end"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return q, errors.BadRequestWrap(err, "end must be YYYY-MM-DD")
		}
		q.End = t
	}
	return q, nil
}

// fail maps service errors onto the error envelope.
func fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if stderrors.Is(err, services.ErrNoData) {
		err = errors.ServiceUnavailableWrap(err, "No dataset is loaded")
	}
	errors.WriteError(w, logger, err, observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, data, map[string]string{"Cache-Control": cacheControl})
}

func (h *APIHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	data, err := h.analytics.Overview(r.Context(), q)
	h.respond(w, r, data, err)
}

func (h *APIHandlers) HandleHierarchy(w http.ResponseWriter, r *http.Request) {
	kind, err := services.ParseKind(r.PathValue("kind"))
	if err != nil {
		fail(w, r, h.logger, errors.NotFound(err.Error()))
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	data, err := h.analytics.Hierarchy(r.Context(), kind, q)
	h.respond(w, r, data, err)
}

func (h *APIHandlers) HandleABC(w http.ResponseWriter, r *http.Request) {
	dim, err := services.ParseDimension(r.URL.Query().Get("dimension"))
	if err != nil {
		fail(w, r, h.logger, errors.ValidationWrap(err, err.Error()))
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	data, err := h.analytics.ABC(r.Context(), dim, q)
	h.respond(w, r, data, err)
}

func (h *APIHandlers) HandleCustomers(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	data, err := h.analytics.Customers(r.Context(), q)
	h.respond(w, r, data, err)
}

func (h *APIHandlers) HandleCohort(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	data, err := h.analytics.Cohort(r.Context(), q)
	h.respond(w, r, data, err)
}

func (h *APIHandlers) HandleProjection(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	data, err := h.analytics.Projection(r.Context(), q)
	h.respond(w, r, data, err)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}
