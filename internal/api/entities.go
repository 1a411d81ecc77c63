package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-entities/internal/entitystore"
	"github.com/nerrad567/gray-logic-entities/internal/entitystore/schema"
)

// WebSocket channel for entity store changes.
const ChannelEntityStore = "entity_store.changed"

// decodeRecord reads a raw configuration record from the request body.
func decodeRecord(r *http.Request) (map[string]any, error) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return raw, nil
}

// handleListEntities returns stored entities, optionally filtered by ?platform=.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	platform := schema.Platform(r.URL.Query().Get("platform"))
	if platform != "" {
		if _, err := s.store.Registry().Schema(platform); err != nil {
			writeValidationError(w, err)
			return
		}
	}

	entries := s.store.List(platform)
	writeJSON(w, http.StatusOK, map[string]any{"entities": entries, "count": len(entries)})
}

// handleCreateEntity validates and stores a new entity.
func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeRecord(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	entry, err := s.store.Create(r.Context(), raw)
	if err != nil {
		s.writeEntityError(w, err, "create")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleValidateEntity validates a record without storing it and returns
// the normalised form.
func (s *Server) handleValidateEntity(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeRecord(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	rec, err := s.store.Validate(raw)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  true,
		"record": rec.Map(),
	})
}

// handleListSchemas describes every registered platform.
func (s *Server) handleListSchemas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"platforms": s.store.Registry().Describe(),
	})
}

// handleGetSchema describes one platform's composed schema.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	platform := schema.Platform(chi.URLParam(r, "platform"))
	sch, err := s.store.Registry().Schema(platform)
	if err != nil {
		writeNotFound(w, "unknown platform")
		return
	}
	writeJSON(w, http.StatusOK, schema.PlatformInfo{
		Platform: platform,
		Fields:   schema.DescribeSchema(sch),
	})
}

// handleGetEntity returns one entity by unique ID.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.Get(r.Context(), chi.URLParam(r, "uniqueID"))
	if err != nil {
		s.writeEntityError(w, err, "get")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleUpdateEntity replaces an entity's data. The unique ID comes from
// the path; a conflicting unique_id in the body is rejected.
func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	uniqueID := chi.URLParam(r, "uniqueID")

	raw, err := decodeRecord(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if id, ok := raw[entitystore.KeyUniqueID]; ok && id != uniqueID {
		writeBadRequest(w, "unique_id in body does not match path")
		return
	}
	raw[entitystore.KeyUniqueID] = uniqueID

	entry, err := s.store.Update(r.Context(), raw)
	if err != nil {
		s.writeEntityError(w, err, "update")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleDeleteEntity removes an entity.
func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "uniqueID")); err != nil {
		s.writeEntityError(w, err, "delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BroadcastEntityChange relays a store change to subscribed WebSocket clients.
// It is registered as the store's change callback.
func (s *Server) BroadcastEntityChange(c entitystore.Change) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(ChannelEntityStore, c)
}
