package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booksys/internal/domain"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRecover(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "handler panicked", hook.LastEntry().Message)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://books.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://books.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "https://books.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
		req.Header.Set("Origin", "https://books.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

type stubAuth struct {
	session *domain.Session
	err     error
}

func (s stubAuth) Authenticate(ctx context.Context, id string) (*domain.Session, error) {
	return s.session, s.err
}

func TestRequireSession(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var seen *domain.Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFromContext(r.Context())
	})

	session := &domain.Session{ID: "s1", UserID: "u1"}

	tests := []struct {
		name   string
		auth   Authenticator
		cookie string
		want   int
	}{
		{"no cookie", stubAuth{session: session}, "", http.StatusUnauthorized},
		{"rejected", stubAuth{err: domain.ErrSessionInvalid}, "s1", http.StatusUnauthorized},
		{"accepted", stubAuth{session: session}, "s1", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			RequireSession(tt.auth, logger)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, session, seen)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	unlimited := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow("10.0.0.3"))
	}
}

func TestDecodeIDs(t *testing.T) {
	tests := []struct {
		body    string
		want    []int64
		wantErr bool
	}{
		{body: `7`, want: []int64{7}},
		{body: `[1, 2]`, want: []int64{1, 2}},
		{body: `[{"id": 3}, {"id": 4}]`, want: []int64{3, 4}},
		{body: `{"ids": [5]}`, want: []int64{5}},
		{body: `{"id": 6}`, want: []int64{6}},
		{body: `[]`, want: []int64{}},
		{body: ``, wantErr: true},
		{body: `{}`, wantErr: true},
		{body: `[{"title": "x"}]`, wantErr: true},
		{body: `"7"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got, err := decodeIDs([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name    string
		remote  string
		xff     string
		realIP  string
		trusted []netip.Prefix
		want    string
	}{
		{name: "direct peer", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "untrusted peer ignores xff", remote: "192.0.2.1:1234", xff: "203.0.113.5", want: "192.0.2.1"},
		{name: "untrusted peer ignores x-real-ip", remote: "192.0.2.1:1234", realIP: "203.0.113.5", trusted: trusted, want: "192.0.2.1"},
		{name: "no trusted proxies", remote: "10.0.0.1:1234", xff: "203.0.113.5", want: "10.0.0.1"},
		{name: "trusted proxy", remote: "10.0.0.1:1234", xff: "203.0.113.5", trusted: trusted, want: "203.0.113.5"},
		{name: "rightmost untrusted hop", remote: "10.0.0.1:1234", xff: "198.51.100.9, 203.0.113.5, 10.0.0.2", trusted: trusted, want: "203.0.113.5"},
		{name: "all hops trusted", remote: "10.0.0.1:1234", xff: "10.0.0.3, 10.0.0.2", trusted: trusted, want: "10.0.0.3"},
		{name: "x-real-ip from trusted proxy", remote: "10.0.0.1:1234", realIP: "203.0.113.5", trusted: trusted, want: "203.0.113.5"},
		{name: "remote without port", remote: "192.0.2.1", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, clientIP(req, tt.trusted))
		})
	}
}

func TestRateLimiterIgnoresSpoofedForwarding(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	send := func(h http.Handler, remote, xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("rotating xff from one peer", func(t *testing.T) {
		h := NewRateLimiter(1, 1).Middleware(ok)
		rejected := 0
		for i := 0; i < 50; i++ {
			if send(h, "203.0.113.7:5000", "10.0.0."+strconv.Itoa(i)) == http.StatusTooManyRequests {
				rejected++
			}
		}
		assert.Equal(t, 49, rejected)
	})

	t.Run("clients behind a trusted proxy", func(t *testing.T) {
		h := NewRateLimiter(1, 1, WithTrustedProxies(netip.MustParsePrefix("10.0.0.0/8"))).Middleware(ok)
		assert.Equal(t, http.StatusOK, send(h, "10.0.0.1:5000", "198.51.100.1"))
		assert.Equal(t, http.StatusOK, send(h, "10.0.0.1:5000", "198.51.100.2"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "10.0.0.1:5000", "198.51.100.1"))
	})
}
