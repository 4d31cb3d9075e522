package supabase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"yakunote/internal/model"
)

type AuthClient struct {
	baseClient
}

func NewAuthClient(cfg Config) *AuthClient {
	return &AuthClient{baseClient: newBaseClient(cfg)}
}

func (c *AuthClient) Configured() bool {
	return c.configured()
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (u *gotrueUser) principal() *model.Principal {
	if u == nil || u.ID == "" {
		return nil
	}
	return &model.Principal{ID: u.ID, Email: u.Email}
}

// gotrueSession covers token responses and the bare user GoTrue returns on unconfirmed sign-up.
type gotrueSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         *gotrueUser `json:"user"`

	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *gotrueSession) toModel() (*model.Principal, *model.AuthSession) {
	user := s.User.principal()
	if user == nil && s.ID != "" {
		user = &model.Principal{ID: s.ID, Email: s.Email}
	}
	if s.AccessToken == "" {
		return user, nil
	}
	return user, &model.AuthSession{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		ExpiresAt:    s.ExpiresAt,
		User:         user,
	}
}

func (c *AuthClient) endpoint(path string, query url.Values) string {
	u := c.baseURL + authPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *AuthClient) token(ctx context.Context, grant string, body any) (*model.AuthSession, error) {
	var out gotrueSession
	if _, err := c.do(ctx, http.MethodPost, c.endpoint("/token", url.Values{"grant_type": {grant}}), nil, body, &out); err != nil {
		return nil, err
	}
	_, session := out.toModel()
	if session == nil {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "token response has no access token"}
	}
	return session, nil
}

func (c *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*model.AuthSession, error) {
	return c.token(ctx, "password", map[string]string{"email": email, "password": password})
}

// SignUp registers a user. The session is nil when e-mail confirmation is pending.
func (c *AuthClient) SignUp(ctx context.Context, email, password, redirectTo string) (*model.Principal, *model.AuthSession, error) {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	var out gotrueSession
	body := map[string]string{"email": email, "password": password}
	if _, err := c.do(ctx, http.MethodPost, c.endpoint("/signup", query), nil, body, &out); err != nil {
		return nil, nil, err
	}
	user, session := out.toModel()
	return user, session, nil
}

func (c *AuthClient) ExchangeCodeForSession(ctx context.Context, code, verifier string) (*model.AuthSession, error) {
	return c.token(ctx, "pkce", map[string]string{"auth_code": code, "code_verifier": verifier})
}

func (c *AuthClient) RefreshSession(ctx context.Context, refreshToken string) (*model.AuthSession, error) {
	return c.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (c *AuthClient) GetUser(ctx context.Context, accessToken string) (*model.Principal, error) {
	var out gotrueUser
	headers := http.Header{"Authorization": {"Bearer " + accessToken}}
	if _, err := c.do(ctx, http.MethodGet, c.endpoint("/user", nil), headers, nil, &out); err != nil {
		return nil, err
	}
	user := out.principal()
	if user == nil {
		return nil, &APIError{StatusCode: http.StatusUnauthorized, Message: "user not found"}
	}
	return user, nil
}

func (c *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	headers := http.Header{"Authorization": {"Bearer " + accessToken}}
	_, err := c.do(ctx, http.MethodPost, c.endpoint("/logout", nil), headers, nil, nil)
	return err
}

type OAuthOptions struct {
	Provider    string
	RedirectTo  string
	Challenge   string
	QueryParams map[string]string
}

// AuthorizeURL is where the browser is sent to start an OAuth sign-in.
func (c *AuthClient) AuthorizeURL(opts OAuthOptions) (string, error) {
	if c.baseURL == "" {
		return "", ErrNotConfigured
	}
	provider := strings.TrimSpace(opts.Provider)
	if provider == "" {
		return "", fmt.Errorf("oauth provider is required")
	}
	query := url.Values{"provider": {provider}}
	if opts.RedirectTo != "" {
		query.Set("redirect_to", opts.RedirectTo)
	}
	if opts.Challenge != "" {
		query.Set("code_challenge", opts.Challenge)
		query.Set("code_challenge_method", "s256")
	}
	for k, v := range opts.QueryParams {
		query.Set(k, v)
	}
	return c.endpoint("/authorize", query), nil
}

// NewPKCE returns a random verifier and its S256 challenge.
func NewPKCE() (verifier, challenge string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate pkce verifier failed: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(buf)
	return verifier, PKCEChallenge(verifier), nil
}

func PKCEChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
