package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-entities/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type ticketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expires_in"`
}

// handleLogin exchanges the admin credential for an access token. Login
// is disabled until an admin password is configured.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := auth.CheckAdmin(s.secCfg.Admin, req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrLoginDisabled):
		writeUnauthorized(w, "login disabled: no admin password configured")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.logger.Warn("failed login attempt", "username", req.Username)
		writeUnauthorized(w, "invalid credentials")
		return
	default:
		s.logger.Error("checking admin credential", "error", err)
		writeInternalError(w, "login unavailable")
		return
	}

	token, err := s.tokens.Issue(req.Username)
	if err != nil {
		s.logger.Error("issuing access token", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}
	s.logger.Info("login", "username", req.Username)

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokens.TTL().Seconds()),
	})
}

// handleWSTicket issues a single-use ticket for GET /ws.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	id, err := s.tickets.issue(subjectFrom(r.Context()))
	if err != nil {
		s.logger.Error("issuing websocket ticket", "error", err)
		writeInternalError(w, "failed to generate ticket")
		return
	}
	writeJSON(w, http.StatusOK, ticketResponse{Ticket: id, ExpiresIn: int(s.tickets.ttl.Seconds())})
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}
