package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"yakunote/internal/app"
	"yakunote/internal/transport/http/middleware"
	"yakunote/internal/transport/http/response"
)

const (
	verifierCookie  = "yn-pkce-verifier"
	nextCookie      = "yn-auth-next"
	oauthCookieTTL  = 10 * 60
	oauthCookiePath = "/api/auth"
	afterSignInPath = "/summary"
	signInPagePath  = "/login"
)

type AuthHandler struct {
	authService *app.AuthService
	secure      bool
	log         *slog.Logger
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewAuthHandler builds the auth routes; secure marks cookies Secure for https deployments.
func NewAuthHandler(authService *app.AuthService, secure bool, log *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, secure: secure, log: loggerOrDefault(log)}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Auth(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	session, err := h.authService.Login(c.Request.Context(), app.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		h.writeAuthError(c, "login", err)
		return
	}

	middleware.SetSessionCookies(c, session, h.secure)
	response.OK(c, gin.H{"data": gin.H{"user": session.User, "session": session}})
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Auth(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.SignUp(c.Request.Context(), app.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		h.writeAuthError(c, "signup", err)
		return
	}

	middleware.SetSessionCookies(c, result.Session, h.secure)
	response.OK(c, gin.H{"data": gin.H{"user": result.User, "session": result.Session}})
}

// OAuth starts a provider sign-in. The PKCE verifier travels in a short-lived cookie scoped to the callback.
func (h *AuthHandler) OAuth(c *gin.Context) {
	start, err := h.authService.StartOAuth(c.Param("provider"))
	if err != nil {
		h.writeAuthError(c, "oauth start", err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(verifierCookie, start.Verifier, oauthCookieTTL, oauthCookiePath, "", h.secure, true)
	if next := safeNext(c.Query("redirect_to")); next != "" {
		c.SetCookie(nextCookie, next, oauthCookieTTL, oauthCookiePath, "", h.secure, true)
	}
	c.Redirect(http.StatusFound, start.URL)
}

func (h *AuthHandler) Callback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		msg := c.DefaultQuery("error_description", providerErr)
		h.log.InfoContext(c.Request.Context(), "oauth provider returned error", "error", providerErr, "description", msg)
		redirectToLogin(c, msg)
		return
	}

	code := c.Query("code")
	if code == "" {
		redirectToLogin(c, "missing authorization code")
		return
	}

	verifier, _ := c.Cookie(verifierCookie)
	next, _ := c.Cookie(nextCookie)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(verifierCookie, "", -1, oauthCookiePath, "", h.secure, true)
	c.SetCookie(nextCookie, "", -1, oauthCookiePath, "", h.secure, true)

	session, err := h.authService.ExchangeCode(c.Request.Context(), code, verifier)
	if err != nil {
		h.log.WarnContext(c.Request.Context(), "auth code exchange failed", "error", err)
		redirectToLogin(c, authMessage(err))
		return
	}

	middleware.SetSessionCookies(c, session, h.secure)
	if next = safeNext(next); next == "" {
		next = afterSignInPath
	}
	c.Redirect(http.StatusFound, next)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.SignOut(c.Request.Context(), middleware.AccessToken(c)); err != nil {
		h.log.WarnContext(c.Request.Context(), "provider sign-out failed", "error", err)
	}
	middleware.ClearSessionCookies(c, h.secure)
	response.Success(c, response.Status{})
}

func (h *AuthHandler) Session(c *gin.Context) {
	response.OK(c, gin.H{"user": middleware.Principal(c)})
}

func (h *AuthHandler) writeAuthError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		response.Auth(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrAuthUnavailable):
		h.log.ErrorContext(c.Request.Context(), op+" failed", "error", err)
		response.Auth(c, http.StatusInternalServerError, "authentication is not configured")
	default:
		h.log.InfoContext(c.Request.Context(), op+" rejected", "error", err)
		response.Auth(c, http.StatusBadRequest, authMessage(err))
	}
}

// authMessage returns the provider's own wording when there is one.
func authMessage(err error) string {
	var providerErr *app.ProviderError
	if errors.As(err, &providerErr) && providerErr.Message != "" {
		return providerErr.Message
	}
	var validation *app.ValidationError
	if errors.As(err, &validation) {
		return validation.Error()
	}
	return "authentication failed"
}

func redirectToLogin(c *gin.Context, message string) {
	c.Redirect(http.StatusFound, signInPagePath+"?error="+url.QueryEscape(message))
}

// safeNext accepts only same-site absolute paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return ""
	}
	return next
}
