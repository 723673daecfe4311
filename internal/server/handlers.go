package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/arx-os/vecindex/internal/common/logger"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
	"github.com/arx-os/vecindex/pkg/vector"
)

// Handlers binds the demo HTTP front's endpoints to one Index.
type Handlers struct {
	ix  *vector.Index
	log *logger.Logger
}

// NewHandlers builds Handlers over ix.
func NewHandlers(ix *vector.Index) *Handlers {
	return &Handlers{ix: ix, log: logger.With("component", "server.handlers")}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, requestID string, err error) {
	status := http.StatusInternalServerError
	if apperrors.IsInvalidInput(err) {
		status = http.StatusBadRequest
	} else {
		h.log.Warn("request %s on %s failed: %v", requestID, r.URL.Path, err)
	}
	writeJSON(w, status, map[string]any{
		"error":      err.Error(),
		"request_id": requestID,
	})
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// Health reports process liveness; it never touches the Index.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports readiness, prewarming the Index's page cache on every
// call so the first real query doesn't pay that cost, per spec.md's
// prewarm-wired-into-readiness requirement.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.ix.Prewarm(r.Context()); err != nil {
		h.writeError(w, r, requestID(r), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type insertRequest struct {
	Payload uint64    `json:"payload"`
	Vector  []float32 `json:"vector"`
}

// InsertVector handles POST /v1/vectors.
func (h *Handlers) InsertVector(w http.ResponseWriter, r *http.Request) {
	rid := requestID(r)
	var req insertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, rid, apperrors.InvalidInput("malformed request body", err))
		return
	}
	if err := h.ix.Insert(r.Context(), req.Payload, req.Vector); err != nil {
		h.writeError(w, r, rid, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"request_id": rid})
}

type searchRequest struct {
	Vector        []float32 `json:"vector"`
	Probes        []int     `json:"probes"`
	Eps           float64   `json:"eps"`
	MaxScanTuples int       `json:"max_scan_tuples"`
}

type searchResponseItem struct {
	Distance float32 `json:"distance"`
	Payload  uint64  `json:"payload"`
}

// Search handles POST /v1/search, draining the whole Cursor into one JSON
// array. A streaming (chunked/NDJSON) response would suit the Cursor's
// lazy semantics better; this demo front favors a simple request/response
// shape over exposing that.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	rid := requestID(r)
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, rid, apperrors.InvalidInput("malformed request body", err))
		return
	}

	cur, err := h.ix.Search(r.Context(), req.Vector, vector.SearchOptions{
		Probes:        req.Probes,
		Eps:           req.Eps,
		MaxScanTuples: req.MaxScanTuples,
	})
	if err != nil {
		h.writeError(w, r, rid, err)
		return
	}

	results := make([]searchResponseItem, 0, 16)
	for {
		res, ok, err := cur.Next(r.Context())
		if err != nil {
			h.writeError(w, r, rid, err)
			return
		}
		if !ok {
			break
		}
		results = append(results, searchResponseItem{Distance: res.Distance, Payload: res.Payload})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": rid,
		"results":    results,
	})
}

// Stats handles GET /v1/stats, reporting the Index's on-disk tree shape.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ix.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, requestID(r), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type vacuumRequest struct {
	DeadPayloads []uint64 `json:"dead_payloads"`
}

// Vacuum handles POST /v1/vacuum. The demo front has no host heap to ask
// which payloads are dead, so the caller supplies the dead set directly.
func (h *Handlers) Vacuum(w http.ResponseWriter, r *http.Request) {
	rid := requestID(r)
	var req vacuumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, rid, apperrors.InvalidInput("malformed request body", err))
		return
	}
	dead := make(map[uint64]bool, len(req.DeadPayloads))
	for _, p := range req.DeadPayloads {
		dead[p] = true
	}

	stats, err := h.ix.Vacuum(r.Context(), vector.VacuumOptions{
		IsDead: func(payload uint64) bool { return dead[payload] },
	})
	if err != nil {
		h.writeError(w, r, rid, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": rid,
		"stats":      stats,
	})
}
