package app

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yakunote/internal/model"
	"yakunote/internal/platform/supabase"
)

type fakeProvider struct {
	configured   bool
	session      *model.AuthSession
	signUpUser   *model.Principal
	user         *model.Principal
	err          error
	getUserErr   error
	refreshErr   error
	gotRedirect  string
	gotVerifier  string
	getUserCalls int
	refreshCalls int
	signOutCalls int
}

func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) SignInWithPassword(context.Context, string, string) (*model.AuthSession, error) {
	return f.session, f.err
}

func (f *fakeProvider) SignUp(_ context.Context, _, _, redirectTo string) (*model.Principal, *model.AuthSession, error) {
	f.gotRedirect = redirectTo
	return f.signUpUser, f.session, f.err
}

func (f *fakeProvider) ExchangeCodeForSession(_ context.Context, _, verifier string) (*model.AuthSession, error) {
	f.gotVerifier = verifier
	return f.session, f.err
}

func (f *fakeProvider) RefreshSession(context.Context, string) (*model.AuthSession, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.session, nil
}

func (f *fakeProvider) GetUser(context.Context, string) (*model.Principal, error) {
	f.getUserCalls++
	return f.user, f.getUserErr
}

func (f *fakeProvider) SignOut(context.Context, string) error {
	f.signOutCalls++
	return f.err
}

func (f *fakeProvider) AuthorizeURL(opts supabase.OAuthOptions) (string, error) {
	return supabase.NewAuthClient(supabase.Config{URL: "https://proj.supabase.co", APIKey: "anon"}).AuthorizeURL(opts)
}

type memoryPrincipalCache struct {
	values map[string]*model.Principal
}

func (c *memoryPrincipalCache) Get(_ context.Context, token string) (*model.Principal, bool, error) {
	p, ok := c.values[token]
	return p, ok, nil
}

func (c *memoryPrincipalCache) Set(_ context.Context, token string, p *model.Principal, _ time.Time) error {
	c.values[token] = p
	return nil
}

func (c *memoryPrincipalCache) Delete(_ context.Context, token string) error {
	delete(c.values, token)
	return nil
}

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Email: sub + "@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestLoginValidation(t *testing.T) {
	p := &fakeProvider{configured: true}
	svc := NewAuthService(p, nil, AuthConfig{}, nil)

	_, err := svc.Login(context.Background(), Credentials{Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Login(context.Background(), Credentials{Password: "pw"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoginSurfacesProviderMessage(t *testing.T) {
	p := &fakeProvider{configured: true, err: &supabase.APIError{StatusCode: 400, Code: "invalid_grant", Message: "Invalid login credentials"}}
	svc := NewAuthService(p, nil, AuthConfig{}, nil)

	_, err := svc.Login(context.Background(), Credentials{Email: "a@example.com", Password: "bad"})
	require.ErrorIs(t, err, ErrAuthQuery)
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Invalid login credentials", perr.Message)
}

func TestLoginUnconfigured(t *testing.T) {
	svc := NewAuthService(&fakeProvider{}, nil, AuthConfig{}, nil)
	_, err := svc.Login(context.Background(), Credentials{Email: "a@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrAuthUnavailable)
}

func TestLoginCachesPrincipal(t *testing.T) {
	session := &model.AuthSession{AccessToken: "at", ExpiresIn: 3600, User: &model.Principal{ID: "user-1"}}
	p := &fakeProvider{configured: true, session: session}
	cache := &memoryPrincipalCache{values: map[string]*model.Principal{}}
	svc := NewAuthService(p, cache, AuthConfig{}, nil)

	got, err := svc.Login(context.Background(), Credentials{Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "at", got.AccessToken)

	res, err := svc.GetSession(context.Background(), model.SessionTokens{AccessToken: "at"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", res.Principal.ID)
	assert.Zero(t, p.getUserCalls)
}

func TestSignUpRedirect(t *testing.T) {
	p := &fakeProvider{configured: true, signUpUser: &model.Principal{ID: "new"}}
	svc := NewAuthService(p, nil, AuthConfig{PublicURL: "https://yakunote.example.com/"}, nil)

	res, err := svc.SignUp(context.Background(), Credentials{Email: "b@example.com", Password: "pw123456"})
	require.NoError(t, err)
	assert.Equal(t, "new", res.User.ID)
	assert.Nil(t, res.Session)
	assert.Equal(t, "https://yakunote.example.com/api/auth/callback", p.gotRedirect)
}

func TestExchangeCode(t *testing.T) {
	p := &fakeProvider{configured: true, session: &model.AuthSession{AccessToken: "at", User: &model.Principal{ID: "u"}}}
	svc := NewAuthService(p, nil, AuthConfig{}, nil)

	_, err := svc.ExchangeCode(context.Background(), "", "v")
	assert.ErrorIs(t, err, ErrValidation)

	session, err := svc.ExchangeCode(context.Background(), "code", "verifier")
	require.NoError(t, err)
	assert.Equal(t, "at", session.AccessToken)
	assert.Equal(t, "verifier", p.gotVerifier)

	p.err = &supabase.APIError{StatusCode: 400, Message: "invalid flow state"}
	_, err = svc.ExchangeCode(context.Background(), "code", "verifier")
	assert.ErrorIs(t, err, ErrAuthExchange)
}

func TestStartOAuth(t *testing.T) {
	svc := NewAuthService(&fakeProvider{configured: true}, nil, AuthConfig{PublicURL: "https://app.example.com"}, nil)

	start, err := svc.StartOAuth("Google")
	require.NoError(t, err)
	require.NotEmpty(t, start.Verifier)

	u, err := url.Parse(start.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "google", q.Get("provider"))
	assert.Equal(t, "https://app.example.com/api/auth/callback", q.Get("redirect_to"))
	assert.Equal(t, supabase.PKCEChallenge(start.Verifier), q.Get("code_challenge"))
	assert.Equal(t, "offline", q.Get("access_type"))

	_, err = svc.StartOAuth("../evil")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetSessionLocalJWT(t *testing.T) {
	p := &fakeProvider{configured: true}
	svc := NewAuthService(p, nil, AuthConfig{JWTSecret: testSecret}, nil)

	res, err := svc.GetSession(context.Background(), model.SessionTokens{AccessToken: signToken(t, "user-1", time.Now().Add(time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, "user-1", res.Principal.ID)
	assert.Equal(t, "user-1@example.com", res.Principal.Email)
	assert.Nil(t, res.Refreshed)
	assert.Zero(t, p.getUserCalls)

	_, err = svc.GetSession(context.Background(), model.SessionTokens{AccessToken: "garbage"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestGetSessionRefreshesExpiredToken(t *testing.T) {
	refreshed := &model.AuthSession{AccessToken: "new-at", RefreshToken: "new-rt", User: &model.Principal{ID: "user-1"}}
	p := &fakeProvider{configured: true, session: refreshed}
	svc := NewAuthService(p, nil, AuthConfig{JWTSecret: testSecret}, nil)

	expired := signToken(t, "user-1", time.Now().Add(-time.Minute))
	res, err := svc.GetSession(context.Background(), model.SessionTokens{AccessToken: expired, RefreshToken: "rt"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", res.Principal.ID)
	require.NotNil(t, res.Refreshed)
	assert.Equal(t, "new-at", res.Refreshed.AccessToken)
	assert.Equal(t, 1, p.refreshCalls)

	p.refreshErr = &supabase.APIError{StatusCode: 400, Message: "Invalid Refresh Token"}
	_, err = svc.GetSession(context.Background(), model.SessionTokens{AccessToken: expired, RefreshToken: "rt"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestGetSessionViaProvider(t *testing.T) {
	p := &fakeProvider{configured: true, user: &model.Principal{ID: "user-9"}}
	cache := &memoryPrincipalCache{values: map[string]*model.Principal{}}
	svc := NewAuthService(p, cache, AuthConfig{}, nil)

	res, err := svc.GetSession(context.Background(), model.SessionTokens{AccessToken: "opaque"})
	require.NoError(t, err)
	assert.Equal(t, "user-9", res.Principal.ID)

	_, err = svc.GetSession(context.Background(), model.SessionTokens{AccessToken: "opaque"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.getUserCalls)

	p.getUserErr = &supabase.APIError{StatusCode: http.StatusUnauthorized, Message: "invalid JWT"}
	_, err = svc.GetSession(context.Background(), model.SessionTokens{AccessToken: "other"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	p.getUserErr = errors.New("dial tcp: timeout")
	_, err = svc.GetSession(context.Background(), model.SessionTokens{AccessToken: "third"})
	assert.ErrorIs(t, err, ErrAuthQuery)
}

func TestGetSessionWithoutTokens(t *testing.T) {
	svc := NewAuthService(&fakeProvider{configured: true}, nil, AuthConfig{}, nil)
	_, err := svc.GetSession(context.Background(), model.SessionTokens{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSignOutDropsCache(t *testing.T) {
	p := &fakeProvider{configured: true}
	cache := &memoryPrincipalCache{values: map[string]*model.Principal{"at": {ID: "u"}}}
	svc := NewAuthService(p, cache, AuthConfig{}, nil)

	require.NoError(t, svc.SignOut(context.Background(), "at"))
	assert.Empty(t, cache.values)
	assert.Equal(t, 1, p.signOutCalls)
}
