package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kartoza/gem-pricer/internal/apperr"
	"github.com/kartoza/gem-pricer/internal/config"
	"github.com/kartoza/gem-pricer/internal/features"
	"github.com/kartoza/gem-pricer/internal/history"
	"github.com/kartoza/gem-pricer/internal/model"
	"github.com/kartoza/gem-pricer/internal/models"
	"github.com/kartoza/gem-pricer/internal/predict"
)

// Default and maximum number of history records returned at once
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Handler provides HTTP API endpoints
type Handler struct {
	svc     *predict.Service
	history *history.Store
	cfg     config.Config
}

// NewHandler creates a new API handler. history may be nil.
func NewHandler(svc *predict.Service, hist *history.Store, cfg config.Config) *Handler {
	return &Handler{
		svc:     svc,
		history: hist,
		cfg:     cfg,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")

	// Prediction
	r.HandleFunc("/options", h.handleOptions).Methods("GET")
	r.Handle("/predict", RequestID(http.HandlerFunc(h.HandlePredict))).Methods("POST")
	r.HandleFunc("/history", h.handleHistory).Methods("GET")
}

// respondJSON sends a JSON response. A body that cannot be encoded is
// replaced by a 500 error response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		log.Printf("Error encoding response: %v", err)
		buf.Reset()
		json.NewEncoder(&buf).Encode(models.ErrorResponse{Error: "failed to encode response"})
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !h.svc.Ready() {
		status = "degraded"
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := models.InfoResponse{
		Version:        h.cfg.Version,
		ModelLoaded:    h.svc.Model() != nil,
		SchemaLoaded:   h.svc.Schema() != nil,
		Policy:         string(h.svc.Policy()),
		Model:          model.Describe(h.svc.Model()),
		HistoryEnabled: h.history != nil,
	}
	if schema := h.svc.Schema(); schema != nil {
		info.FeatureCount = schema.Len()
		info.MissingColumns = schema.Missing()
	}
	respondJSON(w, http.StatusOK, info)
}

// handleOptions returns the legal category values and numeric controls
func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.OptionsResponse{
		Cut:     features.CutOptions,
		Color:   features.ColorOptions,
		Clarity: features.ClarityOptions,
		Numeric: features.NumericInputs,
	})
}

// HandlePredict runs a prediction on a JSON or form body
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	src := SourceFromRequest(w, r)

	res, err := h.svc.Predict(r.Context(), src)
	if err != nil {
		log.Printf("Prediction error [%s]: %v", predict.RequestID(r.Context()), err)
		if apperr.IsKind(err, apperr.ServiceUnavailable) {
			respondError(w, apperr.StatusCode(err), err.Error())
			return
		}
		respondError(w, apperr.StatusCode(err), "An error occurred during prediction: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, models.PredictResponse{
		PredictedPrice: res.Formatted,
		RawPrice:       res.Price,
	})
}

// handleHistory returns the most recent predictions
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondJSON(w, http.StatusOK, []history.Record{})
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, records)
}
