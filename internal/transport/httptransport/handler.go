package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/awmpietro/golang-api-surface-inference/internal/app"
	"github.com/awmpietro/golang-api-surface-inference/internal/transport/apidto"
)

// RequestRecorder receives one observation per served request.
type RequestRecorder interface {
	RecordHTTPRequest(method, route string, status int, d time.Duration)
}

type Handler struct {
	svc      app.API
	logger   *zap.Logger
	recorder RequestRecorder
}

type Option func(*Handler)

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithRequestRecorder(r RequestRecorder) Option {
	return func(h *Handler) {
		h.recorder = r
	}
}

func NewHandler(svc app.API, opts ...Option) *Handler {
	h := &Handler{svc: svc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the API. metrics may be nil to leave /metrics unrouted.
func (h *Handler) Routes(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.instrument)

	r.Get("/healthz", h.Healthz)
	r.Post("/runs", h.StartRun)
	r.Post("/endpoints/infer", h.InferEndpoints)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var in apidto.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, apidto.ErrorBody("invalid json", err))
		return
	}

	view, trace, err := h.svc.StartRun(r.Context(), in.ToApp())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apidto.ErrorBody("run failed", err))
		return
	}

	h.logger.Info("run finished",
		zap.String("run_id", view.ID),
		zap.String("state", string(view.State)),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)
	writeJSON(w, http.StatusOK, apidto.RunResponse{Run: view, Trace: trace})
}

func (h *Handler) InferEndpoints(w http.ResponseWriter, r *http.Request) {
	var in apidto.InferRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, apidto.ErrorBody("invalid json", err))
		return
	}

	table, stats, err := h.svc.InferEndpoints(in.NetworkRequests)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apidto.ErrorBody("infer failed", err))
		return
	}
	writeJSON(w, http.StatusOK, apidto.NewInferResponse(table, stats))
}

func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.recorder == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.recorder.RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
