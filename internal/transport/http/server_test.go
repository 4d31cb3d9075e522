package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"yakunote/internal/ai"
	appsvc "yakunote/internal/app"
	"yakunote/internal/bootstrap"
	"yakunote/internal/config"
	"yakunote/internal/extract"
	"yakunote/internal/platform/supabase"
	"yakunote/internal/repository"
	"yakunote/internal/transport/http/middleware"
)

const jwtSecret = "router-test-secret-with-at-least-32-characters"

type testEnv struct {
	router   *gin.Engine
	site     *httptest.Server
	llmCalls atomic.Int32
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{}

	env.site = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hello" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><body><article>Hello world</article></body></html>`)
	}))
	t.Cleanup(env.site.Close)

	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.llmCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-3.5-turbo-0125",
"choices":[{"index":0,"message":{"role":"assistant","content":"A greeting."},"finish_reason":"stop"}]}`)
	}))
	t.Cleanup(llm.Close)

	loginToken := signAccessToken(t, "user-1")
	gotrue := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body["password"] != "correct-horse" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  loginToken,
			"refresh_token": "refresh-1",
			"token_type":    "bearer",
			"expires_in":    3600,
			"user":          map[string]string{"id": "user-1", "email": "alice@example.com"},
		})
	}))
	t.Cleanup(gotrue.Close)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	store := repository.NewSummaryRepository(db)
	require.NoError(t, store.AutoMigrate())

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	summaries := appsvc.NewSummaryService(ai.NewOpenAICompatibleClient(ai.Config{
		BaseURL:    llm.URL,
		APIKey:     "sk-test",
		MaxRetries: 0,
	}), appsvc.SummaryConfig{}, log)

	cfg := &config.Config{
		App: config.AppConfig{Name: "yakunote", Env: "test", GinMode: gin.TestMode, PublicURL: "http://localhost:8080"},
	}
	cfg.Storage.Driver = config.StorageDriverMySQL

	app := &bootstrap.App{
		Config:    cfg,
		Logger:    log,
		DB:        db,
		Store:     store,
		Extractor: extract.NewExtractor(2 * time.Second),
		Summaries: summaries,
		Library:   appsvc.NewLibraryService(store, summaries, log),
		Auth: appsvc.NewAuthService(
			supabase.NewAuthClient(supabase.Config{URL: gotrue.URL, APIKey: "anon"}),
			nil,
			appsvc.AuthConfig{JWTSecret: jwtSecret, PublicURL: cfg.PublicBaseURL()},
			log,
		),
		StartedAt: time.Now(),
	}

	env.router, err = NewRouter(app)
	require.NoError(t, err)
	return env
}

func signAccessToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@example.com",
		"role":  "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

type call struct {
	method string
	path   string
	body   string
	token  string
	cookie string
}

func (env *testEnv) do(t *testing.T, c call) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: c.cookie})
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestExtractThenSummarize(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, call{method: http.MethodPost, path: "/api/extract", body: `{"url":"` + env.site.URL + `/hello"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Hello world", out["text"])

	rec, out = env.do(t, call{method: http.MethodPost, path: "/api/summarize", body: `{"text":"Hello world"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "A greeting.", out["summary"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestExtractFailures(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, call{method: http.MethodPost, path: "/api/extract", body: `{"url":"` + env.site.URL + `/missing"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, out["detail"])
	assert.NotEmpty(t, out["error"])
	assert.EqualValues(t, http.StatusNotFound, out["status"])

	for _, body := range []string{`{"url":"not a url"}`, `{"url":"ftp://example.com"}`, `{}`, `not json`} {
		rec, out = env.do(t, call{method: http.MethodPost, path: "/api/extract", body: body})
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.NotEmpty(t, out["detail"], body)
	}
}

func TestSummarizeRequiresText(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, call{method: http.MethodPost, path: "/api/summarize_english", body: `{"text":"   "}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, out["detail"])
	assert.Zero(t, env.llmCalls.Load())
}

func TestTranslate(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, call{method: http.MethodPost, path: "/api/translate", body: `{"text":"Hello","targetLang":"fr"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, out["detail"])
	assert.Zero(t, env.llmCalls.Load())

	rec, out = env.do(t, call{method: http.MethodPost, path: "/api/translate", body: `{"text":"Hello","targetLang":"ja"}`})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A greeting.", out["translatedText"])
	assert.EqualValues(t, 1, env.llmCalls.Load())
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, call{method: http.MethodOptions, path: "/api/save"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
}

func TestSaveAndReadBack(t *testing.T) {
	env := newTestEnv(t)
	payload := `{"text":"Hello world","summary":"A greeting.","user_id":"user-1","url":"https://example.com"}`

	rec, _ := env.do(t, call{method: http.MethodPost, path: "/api/save", body: payload})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, call{method: http.MethodPost, path: "/api/save", body: payload, token: signAccessToken(t, "user-2")})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, out := env.do(t, call{method: http.MethodPost, path: "/api/save", body: `{"text":"","summary":"s","user_id":"user-1"}`, token: signAccessToken(t, "user-1")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["detail"], "text")

	rec, out = env.do(t, call{method: http.MethodPost, path: "/api/save", body: payload, cookie: signAccessToken(t, "user-1")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "success", out["status"])
	id, _ := out["id"].(string)
	require.NotEmpty(t, id)

	rec, out = env.do(t, call{method: http.MethodGet, path: "/api/summary/" + id})
	require.Equal(t, http.StatusOK, rec.Code)
	record := out["summary"].(map[string]any)
	assert.Equal(t, "Hello world", record["original_text"])
	assert.Equal(t, "A greeting.", record["summary"])
	assert.Equal(t, "https://example.com", record["url"])

	rec, out = env.do(t, call{method: http.MethodGet, path: "/api/summaries/user-1?skip=0&limit=5"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, out["total"])
	assert.EqualValues(t, 5, out["limit"])
	assert.Len(t, out["summaries"], 1)

	rec, _ = env.do(t, call{method: http.MethodGet, path: "/api/summaries/user-1?skip=abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = env.do(t, call{method: http.MethodGet, path: "/api/summary_english/" + id})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A greeting.", out["summary"].(map[string]any)["summary"])

	rec, out = env.do(t, call{method: http.MethodDelete, path: "/api/summary/" + id})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, out["deleted"])

	rec, out = env.do(t, call{method: http.MethodDelete, path: "/api/summary/" + id})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", out["status"])
	assert.EqualValues(t, 0, out["deleted"])
}

func TestGetMissingSummary(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, call{method: http.MethodGet, path: "/api/summary/does-not-exist"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, out["detail"])

	rec, _ = env.do(t, call{method: http.MethodGet, path: "/api/summary_english/does-not-exist"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, env.llmCalls.Load())
}

func TestPageGuards(t *testing.T) {
	env := newTestEnv(t)
	token := signAccessToken(t, "user-1")

	tests := []struct {
		name     string
		path     string
		cookie   string
		status   int
		location string
	}{
		{"landing is public", "/", "", http.StatusOK, ""},
		{"workspace needs sign-in", "/summary", "", http.StatusFound, "/login"},
		{"detail needs sign-in", "/summary/abc", "", http.StatusFound, "/login"},
		{"workspace when signed in", "/summary", token, http.StatusOK, ""},
		{"list when signed in", "/summaries", token, http.StatusOK, ""},
		{"login when signed out", "/login", "", http.StatusOK, ""},
		{"login when signed in", "/login", token, http.StatusFound, "/summary"},
		{"signup when signed in", "/signup", token, http.StatusFound, "/summary"},
		{"invalid cookie counts as signed out", "/summary", "garbage", http.StatusFound, "/login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := env.do(t, call{method: http.MethodGet, path: tt.path, cookie: tt.cookie})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}
}

func TestLoginSetsSessionCookies(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: `{"email":"alice@example.com","password":"wrong"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid login credentials", out["error"])

	rec, out = env.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: `{"email":"alice@example.com","password":"correct-horse"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := out["data"].(map[string]any)
	assert.Equal(t, "user-1", data["user"].(map[string]any)["id"])

	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, middleware.AccessTokenCookie)
	assert.True(t, cookies[middleware.AccessTokenCookie].HttpOnly)
	assert.Equal(t, "refresh-1", cookies[middleware.RefreshTokenCookie].Value)

	rec, out = env.do(t, call{method: http.MethodGet, path: "/api/auth/session", cookie: cookies[middleware.AccessTokenCookie].Value})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", out["user"].(map[string]any)["id"])

	rec, out = env.do(t, call{method: http.MethodGet, path: "/api/auth/session"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, out["user"])
}

func TestAuthValidation(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, call{method: http.MethodPost, path: "/api/auth/signup", body: `{"email":"","password":""}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, out["error"])
	assert.NotContains(t, out, "detail")
}

func TestCallbackRedirects(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, call{method: http.MethodGet, path: "/api/auth/callback?error=access_denied&error_description=User+denied"})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?error=User+denied", rec.Header().Get("Location"))

	rec, _ = env.do(t, call{method: http.MethodGet, path: "/api/auth/callback"})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/login?error="))
}

func TestOAuthStartSetsVerifier(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, call{method: http.MethodGet, path: "/api/auth/oauth/github?redirect_to=/summaries"})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/auth/v1/authorize?")
	assert.Contains(t, rec.Header().Get("Location"), "provider=github")

	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = true
	}
	assert.True(t, names["yn-pkce-verifier"])
	assert.True(t, names["yn-auth-next"])

	rec, out := env.do(t, call{method: http.MethodGet, path: "/api/auth/oauth/bad%20name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, out["error"])
}

func TestHealthAndDiagnostics(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-should-never-leak")
	env := newTestEnv(t)

	rec, out := env.do(t, call{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusOK, rec.Code)
	deps := out["dependencies"].(map[string]any)
	assert.Equal(t, true, deps["storage"].(map[string]any)["ok"])
	assert.Equal(t, false, deps["redis"].(map[string]any)["enabled"])

	rec, _ = env.do(t, call{method: http.MethodGet, path: "/api/diagnostics/env"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-should-never-leak")
	assert.Contains(t, rec.Body.String(), `"name":"OPENAI_API_KEY","present":true`)
}
