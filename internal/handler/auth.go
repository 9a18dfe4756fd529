package handler

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sakif/videotube/internal/apperror"
	"github.com/sakif/videotube/internal/auth"
	"github.com/sakif/videotube/internal/service"
)

// AuthHandler serves account registration, login and the current-user
// endpoint.
type AuthHandler struct {
	svc      *service.AuthService
	tokenTTL time.Duration
	logger   logrus.FieldLogger
}

func NewAuthHandler(svc *service.AuthService, tokenTTL time.Duration, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		svc:      svc,
		tokenTTL: tokenTTL,
		logger:   logger.WithField("handler", "auth"),
	}
}

type authResponse struct {
	User  any    `json:"user"`
	Token string `json:"token"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister creates an account and logs it in.
//
// HTTP: POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeInto(r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, authResponse{User: res.User, Token: res.Token})
}

// HandleLogin exchanges username and password for a token.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeInto(r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusOK, authResponse{User: res.User, Token: res.Token})
}

// HandleLogout clears the token cookie. The JWT itself stays valid until it
// expires; without the cookie the browser simply stops sending it.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.svc.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.WithError(err).WithField("userID", userID).Warn("token subject has no user")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// setTokenCookie stores the JWT in an HttpOnly cookie so browser clients
// need no script access to it. Secure should be set behind HTTPS.
func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
