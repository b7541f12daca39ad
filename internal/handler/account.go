package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"booksys/internal/domain"
	"booksys/internal/service"
)

// BookCounter reports how many books a user owns
type BookCounter interface {
	Count(ctx context.Context, ownerID string) (int64, error)
}

// AccountHandler handles registration, login and session requests
type AccountHandler struct {
	svc          *service.AccountService
	books        BookCounter
	log          logrus.FieldLogger
	cookieSecure bool
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(svc *service.AccountService, books BookCounter, log logrus.FieldLogger, cookieSecure bool) *AccountHandler {
	return &AccountHandler{svc: svc, books: books, log: log, cookieSecure: cookieSecure}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// meResponse is the caller's profile without the password hash
type meResponse struct {
	*domain.User
	BookCount int64 `json:"book_count"`
}

// Teapot refuses to brew coffee
func Teapot(w http.ResponseWriter, r *http.Request) {
	writeError(w, "I'm a teapot", "", http.StatusTeapot)
}

// Health reports liveness
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// Register creates a new user
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, "Failed to read request body", err.Error(), http.StatusBadRequest)
		return
	}

	var req service.RegisterInput
	if err := decodeStrict(data, &req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.log, "Failed to register", err)
		return
	}

	writeJSON(w, map[string]string{"user_id": user.ID}, http.StatusOK)
}

// Login checks credentials and sets the session cookie
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, "Failed to read request body", err.Error(), http.StatusBadRequest)
		return
	}

	var req loginRequest
	if err := decodeStrict(data, &req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, h.log, "Failed to log in", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, map[string]string{"session_id": session.ID}, http.StatusOK)
}

// Logout ends the caller's session and clears the cookie
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, "Unauthorized", domain.ErrSessionInvalid.Error(), http.StatusUnauthorized)
		return
	}

	if err := h.svc.Logout(r.Context(), session); err != nil {
		writeServiceError(w, r, h.log, "Failed to log out", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, "ok", http.StatusOK)
}

// Me returns the caller's profile
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, "Unauthorized", domain.ErrSessionInvalid.Error(), http.StatusUnauthorized)
		return
	}

	user, err := h.svc.Me(r.Context(), session)
	if err != nil {
		writeServiceError(w, r, h.log, "Failed to load user", err)
		return
	}

	resp := meResponse{User: user}
	if h.books != nil {
		n, err := h.books.Count(r.Context(), user.ID)
		if err != nil {
			writeServiceError(w, r, h.log, "Failed to count books", err)
			return
		}
		resp.BookCount = n
	}

	writeJSON(w, resp, http.StatusOK)
}
