package dataset

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/datapilot-io/platform/pkg/common/logger"
	"github.com/datapilot-io/platform/pkg/common/models"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/datasets", h.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/datasets", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/datasets/{id}", h.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/datasets/{id}", h.handleDelete).Methods(http.MethodDelete)
	router.HandleFunc("/datasets/{id}/preview", h.handlePreview).Methods(http.MethodGet)
	router.HandleFunc("/datasets/{id}/stats", h.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/datasets/{id}/reprocess", h.handleReprocess).Methods(http.MethodPost)
}

func organizationID(r *http.Request) string {
	return r.Header.Get("X-Organization-ID")
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	orgID := organizationID(r)
	if orgID == "" {
		http.Error(w, "missing X-Organization-ID header", http.StatusBadRequest)
		return
	}

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.Log.WithError(err).Warn("invalid upload request")
		http.Error(w, "missing or invalid file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ds, err := h.service.Create(r.Context(), CreateInput{
		OrganizationID: orgID,
		CreatedBy:      r.Header.Get("X-User-ID"),
		Name:           r.FormValue("name"),
		Description:    r.FormValue("description"),
		FileName:       header.Filename,
		SizeBytes:      header.Size,
		Content:        file,
	})
	if err != nil {
		h.writeError(w, err, "failed to create dataset")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(ds)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	orgID := organizationID(r)
	if orgID == "" {
		http.Error(w, "missing X-Organization-ID header", http.StatusBadRequest)
		return
	}

	datasets, err := h.service.List(r.Context(), orgID, r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, err, "failed to list datasets")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"datasets": datasets,
		"count":    len(datasets),
	})
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ds, err := h.service.Get(r.Context(), mux.Vars(r)["id"], organizationID(r))
	if err != nil {
		h.writeError(w, err, "failed to fetch dataset")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ds)
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"], organizationID(r)); err != nil {
		h.writeError(w, err, "failed to delete dataset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	resp, err := h.service.Preview(r.Context(), mux.Vars(r)["id"], organizationID(r), limit)
	if err != nil {
		h.writeError(w, err, "failed to build dataset preview")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Stats(r.Context(), mux.Vars(r)["id"], organizationID(r))
	if err != nil {
		h.writeError(w, err, "failed to fetch dataset statistics")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type reprocessRequest struct {
	ValidationRules      map[string]interface{} `json:"validation_rules"`
	CleaningOptions      map[string]interface{} `json:"cleaning_options"`
	NormalizationOptions map[string]interface{} `json:"normalization_options"`
}

func (h *HTTPHandler) handleReprocess(w http.ResponseWriter, r *http.Request) {
	var req reprocessRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	var opts *models.ReprocessOptions
	if req.ValidationRules != nil || req.CleaningOptions != nil || req.NormalizationOptions != nil {
		opts = &models.ReprocessOptions{
			ValidationRules:      req.ValidationRules,
			CleaningOptions:      req.CleaningOptions,
			NormalizationOptions: req.NormalizationOptions,
		}
	}

	ds, err := h.service.Reprocess(r.Context(), mux.Vars(r)["id"], organizationID(r), opts)
	if err != nil {
		h.writeError(w, err, "failed to reprocess dataset")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(ds)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error, logMsg string) {
	if IsValidationError(err) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "dataset not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, ErrEnqueueFailed) {
		http.Error(w, "ingestion queue unavailable, try again later", http.StatusServiceUnavailable)
		return
	}
	logger.Log.WithError(err).Error(logMsg)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
