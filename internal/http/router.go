package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"wisefido-census/internal/metrics"
)

// Router standard library http.ServeMux with the census routes.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler registers an http.Handler (metrics).
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != m {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterCensusRoutes shift lifecycle, summaries and rollups under /census/api/v1.
func (r *Router) RegisterCensusRoutes(h *CensusHandler) {
	r.Handle("/census/api/v1/shifts", method(http.MethodGet, h.ListShifts))
	r.Handle("/census/api/v1/shifts/draft", method(http.MethodPost, h.SaveDraft))
	r.Handle("/census/api/v1/shifts/submit", method(http.MethodPost, h.SubmitShift))
	r.Handle("/census/api/v1/shifts/approve", method(http.MethodPost, h.ApproveShift))
	r.Handle("/census/api/v1/shifts/reject", method(http.MethodPost, h.RejectShift))
	r.Handle("/census/api/v1/shifts/reopen", method(http.MethodPost, h.ReopenShift))
	r.Handle("/census/api/v1/shifts/edit", method(http.MethodPost, h.EditApprovedShift))

	// summaries/{ward}/{date}[/attest]
	r.Handle("/census/api/v1/summaries/", h.ServeSummaries)
	// rollups/{date}[/export]
	r.Handle("/census/api/v1/rollups/", method(http.MethodGet, h.ServeRollups))
}

// RegisterHealthRoutes liveness check.
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	})
}

// RegisterMetricsRoutes prometheus scrape endpoint.
func (r *Router) RegisterMetricsRoutes(m *metrics.Metrics) {
	r.HandleHandler("/metrics", m.Handler())
}
