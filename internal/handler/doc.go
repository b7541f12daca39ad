// Package handler implements the booksys HTTP API.
//
// AccountHandler covers registration, login, logout and the caller's
// profile. BookHandler covers owner-scoped book CRUD, catalog import/export
// and the per-user event stream. NewRouter mounts both on a ServeMux behind
// the Recover, CORS and Logger middleware; authenticated routes additionally
// pass through RequireSession, which resolves the session_id cookie.
//
// Errors are returned as JSON with {error, details} and a status derived
// from the domain error (400 validation, 401 auth, 404 missing, 409
// conflict).
package handler
