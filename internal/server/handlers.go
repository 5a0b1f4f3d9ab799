package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"xtherma_bridge/internal/registers"
)

const (
	defaultWritesLimit = 50
	maxWritesLimit     = 1000
)

// Value is the JSON form of one snapshot value.
type Value struct {
	Key     string  `json:"key"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
	Unit    string  `json:"unit,omitempty"`
	Kind    string  `json:"kind,omitempty"`
}

// Register is the JSON form of a descriptor.
type Register struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Unit     string   `json:"unit,omitempty"`
	Category string   `json:"category"`
	Factor   string   `json:"factor,omitempty"`
	Writable bool     `json:"writable"`
	Options  []string `json:"options,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Address  *uint16  `json:"address,omitempty"`
}

// Status is the JSON form of the coordinator state.
type Status struct {
	State         string            `json:"state"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
	LastError     string            `json:"last_error,omitempty"`
	Polls         uint64            `json:"polls"`
	Failures      map[string]uint64 `json:"failures"`
	Writes        uint64            `json:"writes"`
	WriteFailures uint64            `json:"write_failures"`
	PendingWrites int               `json:"pending_writes"`
}

// writeRequest is the body of PUT /api/values/{key}. Value may be a number
// or a string such as an option name or "on".
type writeRequest struct {
	Value json.RawMessage `json:"value"`
}

// handleHealth responds to health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.ctrl.Stats()
	st := Status{
		State:         s.ctrl.State().String(),
		Polls:         stats.Polls,
		Failures:      stats.Failures,
		Writes:        stats.Writes,
		WriteFailures: stats.WriteFailures,
		PendingWrites: stats.PendingWriteCount,
	}
	if at := s.ctrl.Snapshot().UpdatedAt; !at.IsZero() {
		st.UpdatedAt = &at
	}
	if err := s.ctrl.LastError(); err != nil {
		st.LastError = err.Error()
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) toValue(key string, v float64) Value {
	out := Value{Key: key, Value: v, Display: strconv.FormatFloat(v, 'f', -1, 64)}
	if d, ok := s.ctrl.Lookup(key); ok {
		out.Display = d.Format(v)
		out.Unit = d.Unit
		out.Kind = d.Kind.String()
	}
	return out
}

// valueList returns all snapshot values sorted by key.
func (s *Server) valueList() []Value {
	snap := s.ctrl.Snapshot()
	out := make([]Value, 0, len(snap.Values))
	for key, v := range snap.Values {
		out = append(out, s.toValue(key, v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.valueList())
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	key := strings.ToLower(chi.URLParam(r, "key"))
	v, ok := s.ctrl.Snapshot().Get(key)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no value for "+key)
		return
	}
	writeJSON(w, http.StatusOK, s.toValue(key, v))
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	key := strings.ToLower(chi.URLParam(r, "key"))
	d, ok := s.ctrl.Lookup(key)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown key "+key)
		return
	}

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Value) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, `body must be {"value": ...}`)
		return
	}

	v, err := parseValue(d, req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	if err := s.ctrl.Write(r.Context(), key, v); err != nil {
		writeWriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toValue(key, v))
}

// parseValue accepts a JSON number, boolean or string.
func parseValue(d registers.Descriptor, raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, errors.New("value must be a number, boolean or string")
	}
	return d.Parse(str)
}

func (s *Server) handleRegisters(w http.ResponseWriter, r *http.Request) {
	descs := s.ctrl.Descriptors()
	out := make([]Register, 0, len(descs))
	for _, d := range descs {
		reg := Register{
			Key:      d.Key,
			Name:     d.Name,
			Kind:     d.Kind.String(),
			Unit:     d.Unit,
			Category: d.Category.String(),
			Factor:   d.Factor.String(),
			Writable: d.Writable,
			Options:  d.Options,
		}
		if d.Min < d.Max {
			lo, hi := d.Min, d.Max
			reg.Min, reg.Max = &lo, &hi
		}
		if d.HasAddress {
			addr := d.Address
			reg.Address = &addr
		}
		out = append(out, reg)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.ctrl.RequestRefresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleWrites(w http.ResponseWriter, r *http.Request) {
	limit := defaultWritesLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxWritesLimit)
	}

	key := strings.ToLower(r.URL.Query().Get("key"))
	entries, err := s.writes.Recent(r.Context(), key, limit)
	if err != nil {
		s.logger.Error("Listing writes failed", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "listing writes failed")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
