package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"drivebox/internal/apperr"
	"drivebox/internal/auth"
	"drivebox/internal/database"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"go.uber.org/zap"
)

const refreshTokenTTL = 24 * time.Hour

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

var errInvalidRefreshToken = errors.New("invalid or expired refresh token")

func generateRefreshToken() (string, error) {
	generate, err := nanoid.Standard(40)
	if err != nil {
		return "", err
	}
	return generate(), nil
}

func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperr.Validation("invalid request body"))
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		s.respondError(w, apperr.Database(err))
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		s.respondError(w, apperr.Unauthorized("invalid username or password"))
		return
	}

	accessToken, err := auth.GenerateJWT(user, s.config.JWT.Secret)
	if err != nil {
		s.respondError(w, apperr.Wrap(http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "failed to generate access token", err))
		return
	}

	refreshToken, err := generateRefreshToken()
	if err != nil {
		s.respondError(w, apperr.Wrap(http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "failed to generate refresh token", err))
		return
	}

	sessionParams := database.CreateSessionParams{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     r.RemoteAddr,
		ExpiresAt:    time.Now().Add(refreshTokenTTL),
	}
	if err := s.store.CreateSession(r.Context(), sessionParams); err != nil {
		s.log.Error("failed to create session", zap.Int64("user_id", user.ID), zap.Error(err))
		s.respondError(w, apperr.Database(err))
		return
	}

	respond(w, http.StatusOK, "login successful", TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokenHandler rotates the refresh token: the presented token is
// consumed and a fresh pair is issued inside one transaction.
func (s *Server) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperr.Validation("invalid request body"))
		return
	}
	if req.RefreshToken == "" {
		s.respondError(w, apperr.Validation("refresh token is required"))
		return
	}

	var newAccessToken, newRefreshToken string

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		user, err := q.GetUserByRefreshToken(r.Context(), req.RefreshToken)
		if err != nil {
			return err
		}
		if user == nil {
			return errInvalidRefreshToken
		}

		if err := q.DeleteSessionByRefreshToken(r.Context(), req.RefreshToken); err != nil {
			return err
		}

		newAccessToken, err = auth.GenerateJWT(user, s.config.JWT.Secret)
		if err != nil {
			return err
		}

		newRefreshToken, err = generateRefreshToken()
		if err != nil {
			return err
		}

		return q.CreateSession(r.Context(), database.CreateSessionParams{
			ID:           uuid.New(),
			UserID:       user.ID,
			RefreshToken: newRefreshToken,
			UserAgent:    r.UserAgent(),
			ClientIP:     r.RemoteAddr,
			ExpiresAt:    time.Now().Add(refreshTokenTTL),
		})
	})

	if txErr != nil {
		if errors.Is(txErr, errInvalidRefreshToken) {
			s.respondError(w, apperr.Unauthorized(txErr.Error()))
			return
		}
		s.log.Error("refresh token rotation failed", zap.Error(txErr))
		s.respondError(w, apperr.Database(txErr))
		return
	}

	respond(w, http.StatusOK, "token refreshed", TokenResponse{
		AccessToken:  newAccessToken,
		RefreshToken: newRefreshToken,
	})
}
