package handlers

import (
	"net/http"
	"time"

	"brainpulse/internal/models"
	"brainpulse/internal/security"
	"brainpulse/internal/service"
	"brainpulse/internal/validation"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService          *service.AuthService
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, oauthProviders map[string]OAuthProvider, oauthRedirectBaseURL string) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		oauthProviders:       oauthProviders,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
	}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type passwordResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type resetTokenResponse struct {
	Valid bool `json:"valid"`
}

// Register creates an account and signs it in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", err)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondWithServiceError(w, "", err)
		return
	}

	result, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondWithServiceError(w, "Failed to register user", err)
		return
	}

	h.signIn(w, r, http.StatusCreated, result)
}

// Login exchanges credentials for a token and session cookie
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", err)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondWithServiceError(w, "", err)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithServiceError(w, "Failed to login", err)
		return
	}

	h.signIn(w, r, http.StatusOK, result)
}

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, status int, result *service.AuthResult) {
	http.SetCookie(w, security.CreateSessionCookie(r, security.SessionCookieName, result.Session.ID, result.Session.ExpiresAt))
	writeJSON(w, status, authResponse{
		Token:     result.Token,
		ExpiresAt: result.Session.ExpiresAt,
		User:      result.User,
	})
}

// Logout deletes the current session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := GetSessionFromContext(r.Context()); sessionID != "" {
		if err := h.authService.Logout(r.Context(), sessionID); err != nil {
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to logout", err)
			return
		}
	}

	http.SetCookie(w, security.CreateDeleteCookie(r, security.SessionCookieName))
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

// Me returns the signed-in user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GetUserFromContext(r.Context()))
}

// RequestPasswordReset emails a reset link. The response does not reveal
// whether the address has an account.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", err)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondWithServiceError(w, "", err)
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to request password reset", err)
		return
	}

	writeJSON(w, http.StatusAccepted, messageResponse{
		Message: "If an account exists for that address, a reset link has been sent",
	})
}

// CheckPasswordResetToken reports whether a reset link can still be used
func (h *AuthHandler) CheckPasswordResetToken(w http.ResponseWriter, r *http.Request) {
	valid, err := h.authService.ValidatePasswordResetToken(r.Context(), r.PathValue("token"))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to check reset token", err)
		return
	}
	writeJSON(w, http.StatusOK, resetTokenResponse{Valid: valid})
}

// ConfirmPasswordReset sets a new password with a reset token
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", err)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondWithServiceError(w, "", err)
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		respondWithServiceError(w, "Failed to reset password", err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated"})
}
