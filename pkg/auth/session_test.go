package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscal-tracker/fiscal-engine/pkg/testhelpers"
)

func newTestSessionStore() *SessionStore {
	return NewSessionStore(testhelpers.TestSecret, "fiscal_session", time.Hour, false)
}

func TestSessionStore_SaveAndRead(t *testing.T) {
	store := newTestSessionStore()

	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), "tok-123"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "fiscal_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.AddCookie(cookies[0])
	token, ok := store.Token(req)
	require.True(t, ok)
	assert.Equal(t, "tok-123", token)
}

func TestSessionStore_NoCookie(t *testing.T) {
	_, ok := newTestSessionStore().Token(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestSessionStore_TamperedCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "fiscal_session", Value: "forged"})

	_, ok := newTestSessionStore().Token(req)
	assert.False(t, ok)
}

func TestSessionStore_ForeignSecret(t *testing.T) {
	other := NewSessionStore("another-secret-0123456789abcdefghij", "fiscal_session", time.Hour, false)
	rec := httptest.NewRecorder()
	require.NoError(t, other.Save(rec, httptest.NewRequest(http.MethodPost, "/", nil), "tok"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	_, ok := newTestSessionStore().Token(req)
	assert.False(t, ok)
}

func TestSessionStore_Clear(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, newTestSessionStore().Clear(rec, httptest.NewRequest(http.MethodPost, "/", nil)))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}
