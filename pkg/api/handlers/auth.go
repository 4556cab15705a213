package handlers

import (
	"errors"
	"net/http"

	"github.com/marmos91/daserver/pkg/api/auth"
)

// AuthHandler exchanges refresh tokens. Tokens are minted offline with
// "daserver token".
type AuthHandler struct {
	jwt *auth.JWTService
}

func NewAuthHandler(jwt *auth.JWTService) *AuthHandler {
	return &AuthHandler{jwt: jwt}
}

// RefreshRequest is the body of POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil || req.RefreshToken == "" {
		BadRequest(w, "refresh_token is required")
		return
	}
	pair, err := h.jwt.Refresh(req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			Unauthorized(w, "Refresh token has expired")
			return
		}
		Unauthorized(w, "Invalid refresh token")
		return
	}
	WriteJSONOK(w, pair)
}
