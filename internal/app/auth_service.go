package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"yakunote/internal/model"
	"yakunote/internal/platform/supabase"
)

const CallbackPath = "/api/auth/callback"

var providerName = regexp.MustCompile(`^[a-z0-9_]+$`)

type AuthProvider interface {
	Configured() bool
	SignInWithPassword(ctx context.Context, email, password string) (*model.AuthSession, error)
	SignUp(ctx context.Context, email, password, redirectTo string) (*model.Principal, *model.AuthSession, error)
	ExchangeCodeForSession(ctx context.Context, code, verifier string) (*model.AuthSession, error)
	RefreshSession(ctx context.Context, refreshToken string) (*model.AuthSession, error)
	GetUser(ctx context.Context, accessToken string) (*model.Principal, error)
	SignOut(ctx context.Context, accessToken string) error
	AuthorizeURL(opts supabase.OAuthOptions) (string, error)
}

type PrincipalCache interface {
	Get(ctx context.Context, accessToken string) (*model.Principal, bool, error)
	Set(ctx context.Context, accessToken string, principal *model.Principal, expiresAt time.Time) error
	Delete(ctx context.Context, accessToken string) error
}

type AuthConfig struct {
	// JWTSecret enables local verification of access tokens.
	JWTSecret string
	PublicURL string
}

type AuthService struct {
	provider AuthProvider
	cache    PrincipalCache
	cfg      AuthConfig
	log      *slog.Logger
}

func NewAuthService(provider AuthProvider, cache PrincipalCache, cfg AuthConfig, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &AuthService{provider: provider, cache: cache, cfg: cfg, log: log}
}

type Credentials struct {
	Email    string
	Password string
}

type SignUpResult struct {
	User    *model.Principal
	Session *model.AuthSession
}

// SessionResult is the resolved principal; Refreshed is set when the tokens had to be renewed.
type SessionResult struct {
	Principal *model.Principal
	Refreshed *model.AuthSession
}

type OAuthStart struct {
	URL      string
	Verifier string
}

func (s *AuthService) Login(ctx context.Context, in Credentials) (*model.AuthSession, error) {
	email, password, err := normalizeCredentials(in)
	if err != nil {
		return nil, err
	}
	if !s.provider.Configured() {
		return nil, ErrAuthUnavailable
	}

	session, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, providerErr(ErrAuthQuery, err)
	}
	s.remember(ctx, session)
	return session, nil
}

func (s *AuthService) SignUp(ctx context.Context, in Credentials) (*SignUpResult, error) {
	email, password, err := normalizeCredentials(in)
	if err != nil {
		return nil, err
	}
	if !s.provider.Configured() {
		return nil, ErrAuthUnavailable
	}

	user, session, err := s.provider.SignUp(ctx, email, password, s.cfg.PublicURL+CallbackPath)
	if err != nil {
		return nil, providerErr(ErrAuthQuery, err)
	}
	if session != nil {
		s.remember(ctx, session)
		if user == nil {
			user = session.User
		}
	}
	return &SignUpResult{User: user, Session: session}, nil
}

func (s *AuthService) ExchangeCode(ctx context.Context, code, verifier string) (*model.AuthSession, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalid("code", "is required")
	}
	if !s.provider.Configured() {
		return nil, ErrAuthUnavailable
	}

	session, err := s.provider.ExchangeCodeForSession(ctx, code, verifier)
	if err != nil {
		return nil, providerErr(ErrAuthExchange, err)
	}
	s.remember(ctx, session)
	return session, nil
}

// StartOAuth builds the provider authorize URL and the PKCE verifier the callback needs.
func (s *AuthService) StartOAuth(provider string) (*OAuthStart, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !providerName.MatchString(provider) {
		return nil, invalid("provider", "is not supported")
	}
	if !s.provider.Configured() {
		return nil, ErrAuthUnavailable
	}

	verifier, challenge, err := supabase.NewPKCE()
	if err != nil {
		return nil, err
	}
	opts := supabase.OAuthOptions{
		Provider:   provider,
		RedirectTo: s.cfg.PublicURL + CallbackPath,
		Challenge:  challenge,
	}
	if provider == "google" {
		opts.QueryParams = map[string]string{"access_type": "offline", "prompt": "consent"}
	}

	authURL, err := s.provider.AuthorizeURL(opts)
	if err != nil {
		return nil, fmt.Errorf("build authorize url failed: %w", err)
	}
	return &OAuthStart{URL: authURL, Verifier: verifier}, nil
}

// GetSession resolves the principal behind tokens. No usable session yields ErrUnauthenticated.
func (s *AuthService) GetSession(ctx context.Context, tokens model.SessionTokens) (*SessionResult, error) {
	if tokens.AccessToken == "" && tokens.RefreshToken == "" {
		return nil, ErrUnauthenticated
	}

	if tokens.AccessToken != "" {
		principal, expired, err := s.verify(ctx, tokens.AccessToken)
		if err != nil {
			return nil, err
		}
		if principal != nil {
			return &SessionResult{Principal: principal}, nil
		}
		if !expired && tokens.RefreshToken == "" {
			return nil, ErrUnauthenticated
		}
	}

	if tokens.RefreshToken == "" || !s.provider.Configured() {
		return nil, ErrUnauthenticated
	}
	session, err := s.provider.RefreshSession(ctx, tokens.RefreshToken)
	if err != nil {
		s.log.InfoContext(ctx, "session refresh rejected", "error", err)
		return nil, ErrUnauthenticated
	}
	if session.User == nil {
		user, err := s.provider.GetUser(ctx, session.AccessToken)
		if err != nil {
			return nil, ErrUnauthenticated
		}
		session.User = user
	}
	s.remember(ctx, session)
	return &SessionResult{Principal: session.User, Refreshed: session}, nil
}

func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, accessToken); err != nil {
			s.log.WarnContext(ctx, "drop cached principal failed", "error", err)
		}
	}
	if !s.provider.Configured() {
		return nil
	}
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		return providerErr(ErrAuthQuery, err)
	}
	return nil
}

// verify returns the principal for a valid token, or expired=true when the token is out of date.
func (s *AuthService) verify(ctx context.Context, accessToken string) (*model.Principal, bool, error) {
	if s.cache != nil {
		principal, ok, err := s.cache.Get(ctx, accessToken)
		if err != nil {
			s.log.WarnContext(ctx, "read principal cache failed", "error", err)
		} else if ok {
			return principal, false, nil
		}
	}

	if s.cfg.JWTSecret != "" {
		principal, expiresAt, err := s.parseToken(accessToken)
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, true, nil
		}
		if err != nil {
			s.log.InfoContext(ctx, "access token rejected", "error", err)
			return nil, false, nil
		}
		s.cachePrincipal(ctx, accessToken, principal, expiresAt)
		return principal, false, nil
	}

	if !s.provider.Configured() {
		return nil, false, nil
	}
	principal, err := s.provider.GetUser(ctx, accessToken)
	if err != nil {
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("%w: %w", ErrAuthQuery, err)
	}
	s.cachePrincipal(ctx, accessToken, principal, time.Time{})
	return principal, false, nil
}

type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func (s *AuthService) parseToken(accessToken string) (*model.Principal, time.Time, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, time.Time{}, err
	}
	if claims.Subject == "" {
		return nil, time.Time{}, errors.New("token has no subject")
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return &model.Principal{ID: claims.Subject, Email: claims.Email}, expiresAt, nil
}

func (s *AuthService) remember(ctx context.Context, session *model.AuthSession) {
	if session == nil || session.User == nil || session.AccessToken == "" {
		return
	}
	s.cachePrincipal(ctx, session.AccessToken, session.User, session.Expiry())
}

func (s *AuthService) cachePrincipal(ctx context.Context, accessToken string, principal *model.Principal, expiresAt time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, accessToken, principal, expiresAt); err != nil {
		s.log.WarnContext(ctx, "write principal cache failed", "error", err)
	}
}

func normalizeCredentials(in Credentials) (string, string, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return "", "", invalid("email and password", "are required")
	}
	return email, in.Password, nil
}

func providerErr(kind, err error) error {
	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Kind: kind, Message: apiErr.Message, Err: err}
	}
	if errors.Is(err, supabase.ErrNotConfigured) {
		return ErrAuthUnavailable
	}
	return fmt.Errorf("%w: %w", kind, err)
}
