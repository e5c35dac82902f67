package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/turtle/internal/storage"
	"github.com/michaelbrown/turtle/internal/storage/sqlite"
)

func testService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc, err := New(store, "test-secret", opts...)
	require.NoError(t, err)
	return svc
}

func TestGeneratePIN(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		pin, err := GeneratePIN()
		require.NoError(t, err)
		assert.Regexp(t, re, pin)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	pin, err := svc.Register(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, pin, 6)

	assert.NoError(t, svc.Login(ctx, "alice", pin))
	assert.ErrorIs(t, svc.Login(ctx, "alice", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, svc.Login(ctx, "bob", pin), ErrInvalidCredentials)

	ok, err := svc.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Exists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterRejectsDuplicatesAndBadNames(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice")
	assert.ErrorIs(t, err, storage.ErrConflict)

	for _, name := range []string{"", "has space", "semi;colon", "waytoolongusername-abcdefghijklmnop"} {
		_, err := svc.Register(ctx, name)
		assert.ErrorIs(t, err, ErrInvalidUsername, "name %q", name)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := testService(t)

	token, err := svc.IssueToken("alice")
	require.NoError(t, err)

	username, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestTokenRejectsForeignSecretAndExpiry(t *testing.T) {
	svc := testService(t)
	token, err := svc.IssueToken("alice")
	require.NoError(t, err)

	other, err := New(svc.store, "other-secret")
	require.NoError(t, err)
	_, err = other.ParseToken(token)
	assert.Error(t, err)

	later := testService(t, WithClock(func() time.Time { return time.Now().Add(SessionLifetime + time.Hour) }))
	later.secret = svc.secret
	_, err = later.ParseToken(token)
	assert.Error(t, err)

	_, err = svc.ParseToken("not-a-token")
	assert.Error(t, err)
}

func TestSetSessionCookie(t *testing.T) {
	svc := testService(t, WithSecureCookies(true))
	rec := httptest.NewRecorder()

	require.NoError(t, svc.SetSession(rec, "alice"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, int(SessionLifetime/time.Second), c.MaxAge)

	rec = httptest.NewRecorder()
	svc.ClearSession(rec)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "", cleared[0].Value)
	assert.True(t, cleared[0].MaxAge < 0)
}

func TestMiddlewareAndRequireUser(t *testing.T) {
	svc := testService(t)
	handler := svc.Middleware(RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		w.Write([]byte(user))
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := svc.IssueToken("alice")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"disabled", "", "Bearer ", http.StatusForbidden},
		{"missing", "s3cret", "", http.StatusUnauthorized},
		{"wrong", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"valid", "s3cret", "Bearer s3cret", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			RequireAdmin(tc.token)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestNewGeneratesSecret(t *testing.T) {
	svc, err := New(nil, "")
	require.NoError(t, err)
	assert.Len(t, svc.secret, 32)

	_, err = svc.ParseToken("")
	assert.True(t, err != nil && !errors.Is(err, ErrInvalidCredentials))
}
