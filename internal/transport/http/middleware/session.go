package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"yakunote/internal/app"
	"yakunote/internal/model"
)

const (
	AccessTokenCookie  = "yn-access-token"
	RefreshTokenCookie = "yn-refresh-token"

	ContextPrincipalKey   = "principal"
	ContextAccessTokenKey = "access_token"

	refreshCookieMaxAge = 30 * 24 * 60 * 60
	defaultAccessMaxAge = 60 * 60
)

type SessionResolver interface {
	GetSession(ctx context.Context, tokens model.SessionTokens) (*app.SessionResult, error)
}

// Session resolves the caller from the session cookies or a Bearer token.
// It never rejects a request; Guard and the handlers decide what anonymity means.
func Session(resolver SessionResolver, secure bool, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		tokens := tokensFromRequest(c)
		if tokens.AccessToken == "" && tokens.RefreshToken == "" {
			c.Next()
			return
		}

		res, err := resolver.GetSession(c.Request.Context(), tokens)
		switch {
		case err == nil:
			c.Set(ContextPrincipalKey, res.Principal)
			c.Set(ContextAccessTokenKey, tokens.AccessToken)
			if res.Refreshed != nil {
				c.Set(ContextAccessTokenKey, res.Refreshed.AccessToken)
				SetSessionCookies(c, res.Refreshed, secure)
			}
		case errors.Is(err, app.ErrUnauthenticated):
			if _, cookieErr := c.Cookie(AccessTokenCookie); cookieErr == nil {
				ClearSessionCookies(c, secure)
			}
		default:
			log.WarnContext(c.Request.Context(), "resolve session failed", "error", err)
		}
		c.Next()
	}
}

func Principal(c *gin.Context) *model.Principal {
	v, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*model.Principal)
	return p
}

// AccessToken is the token the current request was authenticated with.
func AccessToken(c *gin.Context) string {
	if v := c.GetString(ContextAccessTokenKey); v != "" {
		return v
	}
	return tokensFromRequest(c).AccessToken
}

func SetSessionCookies(c *gin.Context, session *model.AuthSession, secure bool) {
	if session == nil || session.AccessToken == "" {
		return
	}
	maxAge := int(session.ExpiresIn)
	if maxAge <= 0 {
		maxAge = defaultAccessMaxAge
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, session.AccessToken, maxAge, "/", "", secure, true)
	if session.RefreshToken != "" {
		c.SetCookie(RefreshTokenCookie, session.RefreshToken, refreshCookieMaxAge, "/", "", secure, true)
	}
}

func ClearSessionCookies(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", secure, true)
}

func tokensFromRequest(c *gin.Context) model.SessionTokens {
	var tokens model.SessionTokens
	if v, err := c.Cookie(AccessTokenCookie); err == nil {
		tokens.AccessToken = v
	}
	if v, err := c.Cookie(RefreshTokenCookie); err == nil {
		tokens.RefreshToken = v
	}

	const prefix = "Bearer "
	if authHeader := strings.TrimSpace(c.GetHeader("Authorization")); strings.HasPrefix(authHeader, prefix) {
		tokens.AccessToken = strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
	}
	return tokens
}
