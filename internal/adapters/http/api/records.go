package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/okian/flightdelay/internal/domain/normalize"
	"github.com/okian/flightdelay/internal/domain/types"
	"github.com/okian/flightdelay/pkg/logger"
)

// RecordsHandler handles record listing and ingestion.
type RecordsHandler struct {
	deps     RecordDependencies
	maxLimit int
	logger   logger.Logger
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps RecordDependencies, maxLimit int, l logger.Logger) *RecordsHandler {
	return &RecordsHandler{deps: deps, maxLimit: maxLimit, logger: l}
}

// recordsRequest mirrors the OpenAPI schema for POST /api/records.
type recordsRequest struct {
	Records []normalize.Input `json:"records"`
}

// HandlePostRecords handles POST /api/records requests.
func (h *RecordsHandler) HandlePostRecords(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_records"

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	var req recordsRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Ingest(r.Context(), req.Records)
	if err != nil {
		if errors.Is(err, types.ErrBackpressure) {
			h.logger.Warn(r.Context(), "ingestion backpressure", logger.Int("records", len(req.Records)))
		}
		writeServiceError(w, op, err)
		return
	}

	status := http.StatusOK
	if res.Accepted > 0 {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

// HandleListFlights handles GET /api/flights?airport=XXX&limit=N requests.
func (h *RecordsHandler) HandleListFlights(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_flights"

	limit := h.maxLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("limit must be a positive integer")))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	page, err := h.deps.Flights(r.Context(), r.URL.Query().Get("airport"), limit)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
