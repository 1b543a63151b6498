package scoringstub

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"riskdash/internal/scoring"
)

// Handler serves the stub's HTTP surface.
type Handler struct {
	model  *Model
	logger *slog.Logger
}

func NewHandler(model *Model, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{model: model, logger: logger}
}

// Routes wires the stub's endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/predict", h.predict)
	r.Get("/healthz", h.health)

	return r
}

type prediction struct {
	DefaultProbability float64            `json:"default_probability"`
	Explanation        map[string]float64 `json:"explanation"`
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	if !h.model.Loaded() {
		h.respondError(w, http.StatusInternalServerError, "model not loaded")
		return
	}

	var req scoring.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	probability, contributions := h.model.Score(req)
	h.logger.Info("scored applicant",
		"grade", req.Grade,
		"loan_amnt", req.LoanAmount,
		"default_probability", probability,
	)

	h.respondJSON(w, http.StatusOK, prediction{
		DefaultProbability: probability,
		Explanation:        contributions,
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	if !h.model.Loaded() {
		h.respondError(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("write response failed", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
