package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// memRevoker is an in-memory Revoker.
type memRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func newMemRevoker() *memRevoker {
	return &memRevoker{revoked: map[string]time.Time{}}
}

func (m *memRevoker) Revoke(_ context.Context, id string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[id] = exp
	return nil
}

func (m *memRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.revoked[id]
	return ok, nil
}

func newTestAuthenticator(t *testing.T) (*Authenticator, *TokenService, *memRevoker) {
	t.Helper()
	ts := newTestTokenService(t)
	rev := newMemRevoker()
	return NewAuthenticator(ts, rev, slog.New(slog.NewTextHandler(io.Discard, nil))), ts, rev
}

// echoUser writes the user id the middleware attached, or "anonymous".
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if id, ok := UserIDFromContext(r.Context()); ok {
		w.Write([]byte("user:" + strconv.FormatInt(id, 10)))
		return
	}
	w.Write([]byte("anonymous"))
})

// =========================================================================
// MIDDLEWARE TESTS
// =========================================================================

func TestRequireAuth_AcceptsTokenSchemes(t *testing.T) {
	a, ts, _ := newTestAuthenticator(t)
	token, err := ts.Generate(5)
	require.NoError(t, err)

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"token scheme", func(r *http.Request) { r.Header.Set("Authorization", "Token "+token) }},
		{"bearer scheme", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users/me/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			a.RequireAuth(echoUser).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "user:5", rec.Body.String())
		})
	}
}

func TestRequireAuth_Rejects(t *testing.T) {
	a, ts, rev := newTestAuthenticator(t)
	expired, _ := ts.GenerateWithDuration(5, -time.Minute)
	revoked, _ := ts.Generate(5)
	claims, err := ts.Validate(revoked)
	require.NoError(t, err)
	require.NoError(t, rev.Revoke(context.Background(), claims.TokenID, claims.ExpiresAt))

	for name, header := range map[string]string{
		"missing":        "",
		"unknown scheme": "Basic dXNlcjpwYXNz",
		"garbage":        "Token nope",
		"expired":        "Token " + expired,
		"revoked":        "Token " + revoked,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()

			a.RequireAuth(echoUser).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"unauthorized"`)
		})
	}
}

func TestRequireAuth_RevocationLookupFailureIsUnauthorized(t *testing.T) {
	a, ts, rev := newTestAuthenticator(t)
	rev.err = errors.New("connection refused")
	token, _ := ts.Generate(5)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token "+token)
	rec := httptest.NewRecorder()
	a.RequireAuth(echoUser).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalAuth(t *testing.T) {
	a, ts, _ := newTestAuthenticator(t)
	token, _ := ts.Generate(3)

	anon := httptest.NewRecorder()
	a.OptionalAuth(echoUser).ServeHTTP(anon, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "anonymous", anon.Body.String())

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.Header.Set("Authorization", "Token broken")
	rec := httptest.NewRecorder()
	a.OptionalAuth(echoUser).ServeHTTP(rec, bad)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())

	good := httptest.NewRequest(http.MethodGet, "/", nil)
	good.Header.Set("Authorization", "Token "+token)
	rec = httptest.NewRecorder()
	a.OptionalAuth(echoUser).ServeHTTP(rec, good)
	assert.Equal(t, "user:3", rec.Body.String())
}

// =========================================================================
// REDIS REVOKER TESTS
// =========================================================================

type fakeRedis struct {
	values map[string]time.Duration
}

func (f *fakeRedis) Set(_ context.Context, key string, _ interface{}, exp time.Duration) *redis.StatusCmd {
	f.values[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisRevoker(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{values: map[string]time.Duration{}}
	r := &RedisRevoker{client: fake}

	require.NoError(t, r.Revoke(ctx, "abc", time.Now().Add(time.Hour)))
	ttl, ok := fake.values["blacklist:abc"]
	require.True(t, ok)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)

	revoked, err := r.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "other")
	require.NoError(t, err)
	assert.False(t, revoked)

	// Already-expired tokens need no entry.
	require.NoError(t, r.Revoke(ctx, "old", time.Now().Add(-time.Minute)))
	_, ok = fake.values["blacklist:old"]
	assert.False(t, ok)
}

// =========================================================================
// GITHUB PROVIDER TESTS
// =========================================================================

func newGitHubStub(t *testing.T, profile string, emails string) *GitHubProvider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_test", r.Header.Get("Authorization"))
		w.Write([]byte(profile))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emails))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewGitHubProvider("id", "secret", "http://localhost/callback")
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/login/oauth/authorize",
		TokenURL: srv.URL + "/login/oauth/access_token",
	}
	p.apiBase = srv.URL
	return p
}

func TestGitHubExchange_PublicEmail(t *testing.T) {
	p := newGitHubStub(t, `{"id":9,"login":"octocat","name":"Mona","email":"Mona@GitHub.com"}`, `[]`)

	u, err := p.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, int64(9), u.ID)
	assert.Equal(t, "octocat", u.Login)
	assert.Equal(t, "mona@github.com", u.Email)
}

func TestGitHubExchange_HiddenEmailUsesPrimary(t *testing.T) {
	p := newGitHubStub(t, `{"id":9,"login":"octocat","email":null}`,
		`[{"email":"old@example.com","primary":false,"verified":true},
		  {"email":"main@example.com","primary":true,"verified":true}]`)

	u, err := p.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "main@example.com", u.Email)
}

func TestGitHubExchange_NoVerifiedEmail(t *testing.T) {
	p := newGitHubStub(t, `{"id":9,"login":"octocat"}`,
		`[{"email":"x@example.com","primary":true,"verified":false}]`)

	_, err := p.Exchange(context.Background(), "code")
	assert.Error(t, err)
}

func TestGitHubAuthURL_CarriesState(t *testing.T) {
	p := NewGitHubProvider("client-1", "secret", "http://localhost/cb")
	u := p.AuthURL("xyz")
	assert.Contains(t, u, "state=xyz")
	assert.Contains(t, u, "client_id=client-1")
}
