package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/hatch-bridge/internal/auth"
)

// defaultTokenTTLMinutes mirrors the auth package default when the config
// leaves the TTL unset.
const defaultTokenTTLMinutes = 15

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleLogin authenticates the admin user and returns a JWT token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	token, err := s.authn.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeUnauthorized(w, "invalid credentials")
			return
		}
		writeInternalError(w, "failed to generate token")
		return
	}

	ttl := s.tokenTTLMinutes()
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   ttl * 60, // seconds
	})
}

// tokenTTLMinutes returns the configured access token TTL in minutes.
func (s *Server) tokenTTLMinutes() int {
	if ttl := s.secTokenTTL; ttl > 0 {
		return ttl
	}
	return defaultTokenTTLMinutes
}
