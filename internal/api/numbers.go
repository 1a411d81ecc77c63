package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-entities/internal/feature"
)

// WebSocket channel for number state changes.
const ChannelNumberState = "number.state_changed"

// setValueRequest is the body of PUT /numbers/{uniqueID}/value.
type setValueRequest struct {
	Value *float64 `json:"value"`
}

// handleListNumbers returns the state of every number control.
func (s *Server) handleListNumbers(w http.ResponseWriter, _ *http.Request) {
	states := s.numbers.States()
	writeJSON(w, http.StatusOK, map[string]any{"numbers": states, "count": len(states)})
}

// handleGetNumber returns one number's state.
func (s *Server) handleGetNumber(w http.ResponseWriter, r *http.Request) {
	n, err := s.numbers.Get(chi.URLParam(r, "uniqueID"))
	if err != nil {
		s.writeNumberError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n.State())
}

// handleSetNumberValue writes a value to the device and returns the
// refreshed state.
func (s *Server) handleSetNumberValue(w http.ResponseWriter, r *http.Request) {
	n, err := s.numbers.Get(chi.URLParam(r, "uniqueID"))
	if err != nil {
		s.writeNumberError(w, err)
		return
	}

	var req setValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	if err := n.SetValue(r.Context(), *req.Value); err != nil {
		s.writeNumberError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n.State())
}

// BroadcastNumberState relays a number state change to subscribed
// WebSocket clients. It is registered as each number's change callback.
func (s *Server) BroadcastNumberState(st feature.NumberState) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(ChannelNumberState, st)
}
