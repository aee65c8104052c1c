package api

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/forcessl/forcessl/internal/api/middleware"
	"github.com/forcessl/forcessl/internal/database"
)

// tokenRequest is the JSON request body for obtaining a bearer token.
type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse carries an issued bearer token.
type tokenResponse struct {
	Token           string `json:"token"`
	UserNicename    string `json:"user_nicename"`
	UserDisplayName string `json:"user_display_name"`
	Expires         string `json:"expires"`
}

// handleToken exchanges a username and password for a bearer token.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if blocked, left := s.guard.Blocked(r.RemoteAddr); blocked {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(left.Seconds()))))
		writeError(w, http.StatusTooManyRequests, "jwt_auth_too_many_attempts", "too many failed attempts, try again later")
		return
	}

	var req tokenRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, "rest_invalid_json", errMsg)
		return
	}
	if errMsg := validateTokenRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, "rest_invalid_param", errMsg)
		return
	}

	user, err := s.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		slog.Error("token: failed to look up user", "error", err)
		writeError(w, http.StatusInternalServerError, "rest_internal_error", "internal error")
		return
	}

	valid := false
	if user != nil {
		valid, err = database.CheckPassword(req.Password, user.PasswordHash)
		if err != nil {
			slog.Error("token: stored password hash is unreadable", "error", err, "user_id", user.ID)
			writeError(w, http.StatusInternalServerError, "rest_internal_error", "internal error")
			return
		}
	}
	if !valid {
		slog.Warn("token: authentication failed", "username", req.Username, "remote_addr", r.RemoteAddr)
		s.guard.RecordFailure(r.RemoteAddr)
		writeError(w, http.StatusForbidden, "jwt_auth_failed", "invalid username or password")
		return
	}

	token, expires, err := middleware.GenerateToken(s.jwtSecret, user.ID, user.Username)
	if err != nil {
		slog.Error("token: failed to sign", "error", err)
		writeError(w, http.StatusInternalServerError, "rest_internal_error", "internal error")
		return
	}

	s.guard.RecordSuccess(r.RemoteAddr)
	slog.Info("token issued", "user_id", user.ID, "username", user.Username)
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:           token,
		UserNicename:    user.Username,
		UserDisplayName: user.DisplayName,
		Expires:         expires.UTC().Format(time.RFC3339),
	})
}
