package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dvcrn/adboard/internal/auth"
	"github.com/dvcrn/adboard/internal/client"
	"github.com/dvcrn/adboard/internal/credentials"
)

type statusResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
	Member  *auth.Member `json:"member,omitempty"`
}

// loginHandler handles POST /session/login with {"username_or_email", "password"}.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse request body")
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "Invalid request body"})
		return
	}

	resp, err := s.client.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, client.ErrInvalidInput) {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: err.Error()})
			return
		}
		s.writeUpstreamError(w, r, err)
		return
	}
	if resp.Access == "" || resp.Refresh == "" {
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "incomplete_login", Message: "login response did not contain a token pair"})
		return
	}

	s.logger.Info().Msg("Session established via proxy login")
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success", Member: resp.Member})
}

// logoutHandler handles POST /session/logout. It never fails.
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	s.client.Logout(r.Context())
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Session cleared"})
}

// refreshHandler handles POST /session/refresh using the stored refresh token.
func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.client.RefreshStored(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Manual refresh failed")
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "session_expired", Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Access token refreshed"})
}

// tokensHandler handles POST /session/tokens for installing a token pair
// obtained elsewhere.
func (s *Server) tokensHandler(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse request body")
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "Invalid request body"})
		return
	}
	if reqBody.AccessToken == "" || reqBody.RefreshToken == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "Missing required fields: accessToken, refreshToken"})
		return
	}

	pair := credentials.TokenPair{AccessToken: reqBody.AccessToken, RefreshToken: reqBody.RefreshToken}
	if err := credentials.SaveTokenPair(r.Context(), s.client.Store(), pair); err != nil {
		s.logger.Error().Err(err).Msg("Failed to update tokens")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "storage_failed", Message: "Failed to update credentials"})
		return
	}

	s.logger.Info().Msg("Session tokens updated successfully")
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Credentials updated successfully"})
}

// statusHandler handles GET /session/status.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := s.client.Status(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read session status")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "storage_failed", Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}
