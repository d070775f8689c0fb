package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipmatch/internal/geometry"
	"github.com/sells-group/zipmatch/internal/query"
)

// emptyMessage accompanies a successful query with no matches.
const emptyMessage = "No ZIP codes found within the given area."

type handlers struct {
	querier Querier
	timeout time.Duration
}

type zipcodeRequest struct {
	Geometry json.RawMessage `json:"geometry"`
	// IsolineGeometry is the legacy name of Geometry.
	IsolineGeometry json.RawMessage `json:"isolineGeometry"`
	MatchMode       json.RawMessage `json:"matchMode"`
	// Mode is an alias of MatchMode.
	Mode json.RawMessage `json:"mode"`
}

type zipcodeResponse struct {
	*query.Result
	Message string `json:"message,omitempty"`
}

func (h *handlers) zipcodes(w http.ResponseWriter, r *http.Request) {
	var req zipcodeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	raw := req.Geometry
	if isNull(raw) {
		raw = req.IsolineGeometry
	}
	if isNull(raw) {
		writeError(w, http.StatusBadRequest, "geometry is required")
		return
	}

	in, err := geometry.ParseJSON(raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	mode, err := modeField(req.MatchMode)
	if err == nil && mode == "" {
		mode, err = modeField(req.Mode)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.querier.Query(ctx, query.Request{Geometry: in, Mode: mode})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := zipcodeResponse{Result: res}
	if len(res.ZipCodes) == 0 {
		resp.Message = emptyMessage
	}
	if res.Cached {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.querier.Stats())
}

// fail maps err to a status code. Client errors carry their message; server
// errors are logged and reported generically.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case query.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "query timed out")
	default:
		zap.L().Error("api: query failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		msg := "internal error"
		if eris.Is(err, query.ErrCatalogLoad) {
			msg = "region catalog unavailable"
		}
		writeError(w, http.StatusInternalServerError, msg)
	}
}

// modeField decodes a match mode field. Absent and null mean the default.
func modeField(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var mode string
	if err := json.Unmarshal(raw, &mode); err != nil {
		return "", eris.Wrapf(query.ErrInvalidMatchMode, "match mode must be a string, got %s", raw)
	}
	return mode, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
