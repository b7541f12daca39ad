package handler

import (
	"io/fs"
	"net/http"

	"github.com/sirupsen/logrus"

	"booksys/internal/service"
)

// RouterConfig collects what NewRouter wires together
type RouterConfig struct {
	Accounts *service.AccountService
	Books    *service.BookService
	Events   EventStreamer
	Log      logrus.FieldLogger

	// Static is served at / when set
	Static fs.FS
	// Metrics is served at /metrics when set
	Metrics http.Handler
	// RateLimiter throttles register and login when set
	RateLimiter *RateLimiter

	CORSOrigins  []string
	CookieSecure bool
}

// NewRouter builds the complete HTTP handler
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	var counter BookCounter
	if cfg.Books != nil {
		counter = cfg.Books
	}
	accounts := NewAccountHandler(cfg.Accounts, counter, log, cfg.CookieSecure)
	books := NewBookHandler(cfg.Books, cfg.Events, log)

	auth := RequireSession(cfg.Accounts, log)
	authed := func(h http.HandlerFunc) http.Handler {
		return auth(h)
	}
	throttled := func(h http.HandlerFunc) http.Handler {
		if cfg.RateLimiter == nil {
			return h
		}
		return cfg.RateLimiter.Middleware(h)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /teapot", Teapot)
	mux.HandleFunc("GET /healthz", Health)

	// Account endpoints
	mux.Handle("POST /api/register", throttled(accounts.Register))
	mux.Handle("POST /api/login", throttled(accounts.Login))
	mux.Handle("POST /api/logout", authed(accounts.Logout))
	mux.Handle("GET /api/me", authed(accounts.Me))
	mux.Handle("POST /api/me", authed(accounts.Me))

	// Book endpoints
	mux.Handle("POST /api/book/add", authed(books.Add))
	mux.Handle("POST /api/book/query", authed(books.Query))
	mux.Handle("GET /api/book/search", authed(books.Search))
	mux.Handle("POST /api/book/modify", authed(books.Modify))
	mux.Handle("POST /api/book/delete", authed(books.Delete))
	mux.Handle("GET /api/book/export", authed(books.Export))
	mux.Handle("POST /api/book/import", authed(books.Import))
	mux.Handle("GET /api/book/{id}", authed(books.Get))

	// SSE events endpoint
	mux.Handle("GET /api/events", authed(books.Events))

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	if cfg.Static != nil {
		mux.Handle("/", http.FileServer(http.FS(cfg.Static)))
	}

	return Chain(mux,
		Recover(log),
		CORS(cfg.CORSOrigins),
		Logger(log),
	)
}
