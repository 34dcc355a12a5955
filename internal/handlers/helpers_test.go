package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/b-cal/apiserver/internal/auth"
	"github.com/b-cal/apiserver/internal/services"
	"github.com/b-cal/apiserver/internal/storage"
	"github.com/b-cal/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	router http.Handler
	users  *store.MemoryUserStore
	issuer *auth.TokenIssuer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := store.NewMemoryUserStore()
	entries := store.NewMemoryCalendarStore(users)
	issuer := auth.NewTokenIssuer("access-secret-for-tests", "refresh-secret-for-tests", 0, 0)

	authService := services.NewAuthService(users, auth.NewBcryptHasher(), issuer, nil, logger)
	userService := services.NewUserService(users)
	calendarService := services.NewCalendarService(entries, nil)
	exportService := services.NewExportService(entries, storage.NewStorage(storage.NewMemoryBackend("exports")), nil)

	guards := NewGuards(authService, issuer, logger)
	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, NewAuthHandler(authService, userService, issuer, false, logger), guards)
	})
	router.Route("/calendar", func(r chi.Router) {
		CalendarRouter(r, NewCalendarHandler(calendarService, exportService, logger), guards)
	})
	return &testAPI{router: router, users: users, issuer: issuer}
}

// client keeps the cookies set by previous responses, like a browser.
type client struct {
	t       *testing.T
	api     *testAPI
	cookies map[string]*http.Cookie
}

func (a *testAPI) client(t *testing.T) *client {
	return &client{t: t, api: a, cookies: make(map[string]*http.Cookie)}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		data, err := json.Marshal(v)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	c.api.router.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge < 0 {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = cookie
	}
	return rec
}

func (c *client) cookie(name string) string {
	if cookie, ok := c.cookies[name]; ok {
		return cookie.Value
	}
	return ""
}

// withCookie replaces a stored cookie value, simulating a replayed token.
func (c *client) withCookie(name, value string) {
	c.cookies[name] = &http.Cookie{Name: name, Value: value}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func credentials(email, password string) map[string]string {
	return map[string]string{"email": email, "password": password}
}
