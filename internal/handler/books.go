package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"booksys/internal/codec"
	"booksys/internal/domain"
	"booksys/internal/service"
)

// EventStreamer streams a user's events to an HTTP client
type EventStreamer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string)
}

// BookHandler handles the owner-scoped book API
type BookHandler struct {
	svc    *service.BookService
	events EventStreamer
	log    logrus.FieldLogger
}

// NewBookHandler creates a new book handler
func NewBookHandler(svc *service.BookService, events EventStreamer, log logrus.FieldLogger) *BookHandler {
	return &BookHandler{svc: svc, events: events, log: log}
}

// bookInput lists the fields a client may set when adding a book
type bookInput struct {
	Title       string         `json:"title"`
	ISBN        string         `json:"isbn"`
	Author      string         `json:"author"`
	Publisher   string         `json:"publisher"`
	Description string         `json:"description"`
	Cover       string         `json:"cover"`
	Price       float64        `json:"price"`
	Extra       map[string]any `json:"extra"`
}

func (in bookInput) toBook() domain.Book {
	return domain.Book{
		Title:       in.Title,
		ISBN:        in.ISBN,
		Author:      in.Author,
		Publisher:   in.Publisher,
		Description: in.Description,
		Cover:       in.Cover,
		Price:       in.Price,
		Extra:       in.Extra,
	}
}

// owner returns the caller's user ID, writing 401 if there is none
func owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, "Unauthorized", domain.ErrSessionInvalid.Error(), http.StatusUnauthorized)
		return "", false
	}
	return session.UserID, true
}

// Add creates one book or a list of books
func (h *BookHandler) Add(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, "Failed to read request body", err.Error(), http.StatusBadRequest)
		return
	}

	inputs, single, err := decodeOneOrMany[bookInput](data)
	if err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	books := make([]domain.Book, 0, len(inputs))
	for _, in := range inputs {
		books = append(books, in.toBook())
	}

	ids, err := h.svc.Add(r.Context(), ownerID, books)
	if err != nil {
		writeServiceError(w, r, h.log, "Failed to add books", err)
		return
	}

	resp := map[string]interface{}{"ids": ids}
	if single && len(ids) == 1 {
		resp["book_id"] = ids[0]
	}
	writeJSON(w, resp, http.StatusOK)
}

// Query lists books matching an optional JSON filter body
func (h *BookHandler) Query(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	page, err := parsePage(r)
	if err != nil {
		writeError(w, "Invalid query parameters", err.Error(), http.StatusBadRequest)
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, "Failed to read request body", err.Error(), http.StatusBadRequest)
		return
	}

	var filter domain.BookFilter
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := decodeStrict(data, &filter); err != nil {
			writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}
	}

	h.list(w, r, ownerID, filter, page)
}

// Search lists books matching filter fields given in the query string
func (h *BookHandler) Search(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	page, err := parsePage(r)
	if err != nil {
		writeError(w, "Invalid query parameters", err.Error(), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	filter := domain.BookFilter{
		Title:       q.Get("title"),
		ISBN:        q.Get("isbn"),
		Author:      q.Get("author"),
		Publisher:   q.Get("publisher"),
		Description: q.Get("description"),
		Extra:       q.Get("extra"),
	}

	h.list(w, r, ownerID, filter, page)
}

func (h *BookHandler) list(w http.ResponseWriter, r *http.Request, ownerID string, filter domain.BookFilter, page domain.Page) {
	books, err := h.svc.Query(r.Context(), ownerID, filter, page)
	if err != nil {
		writeServiceError(w, r, h.log, "Failed to query books", err)
		return
	}
	writeJSON(w, books, http.StatusOK)
}

// parsePage reads the page_size and offset query parameters
func parsePage(r *http.Request) (domain.Page, error) {
	var page domain.Page
	q := r.URL.Query()

	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return page, &domain.ValidationError{Field: "page_size", Reason: "must be an integer of at least 1"}
		}
		page.Size = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, &domain.ValidationError{Field: "offset", Reason: "must be a non-negative integer"}
		}
		page.Offset = n
	}
	return page, nil
}

// Get returns a single book
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, "Invalid book ID", "book ID must be an integer", http.StatusBadRequest)
		return
	}

	book, err := h.svc.Get(r.Context(), ownerID, id)
	if err != nil {
		writeServiceError(w, r, h.log, "Failed to get book", err)
		return
	}

	writeJSON(w, book, http.StatusOK)
}

// Modify applies one patch or a list of patches
func (h *BookHandler) Modify(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, "Failed to read request body", err.Error(), http.StatusBadRequest)
		return
	}

	patches, single, err := decodeOneOrMany[domain.BookPatch](data)
	if err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if single && patches[0].ID == 0 {
		writeError(w, "Invalid request body", `"id" is required`, http.StatusBadRequest)
		return
	}

	result, err := h.svc.Modify(r.Context(), ownerID, patches)
	if err != nil {
		writeServiceError(w, r, h.log, "Failed to modify books", err)
		return
	}

	if single && len(result.Fail) > 0 {
		writeError(w, "Not found", "Book not found", http.StatusNotFound)
		return
	}
	writeJSON(w, result, http.StatusOK)
}

// Delete removes books by id
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, "Failed to read request body", err.Error(), http.StatusBadRequest)
		return
	}

	ids, err := decodeIDs(data)
	if err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.svc.Delete(r.Context(), ownerID, ids)
	if err != nil {
		writeServiceError(w, r, h.log, "Failed to delete books", err)
		return
	}

	writeJSON(w, result, http.StatusOK)
}

// Export downloads the caller's catalog
func (h *BookHandler) Export(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	c, err := codec.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, "Invalid format", err.Error(), http.StatusBadRequest)
		return
	}

	// buffer so a failure can still produce an error response
	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), ownerID, c, &buf); err != nil {
		writeServiceError(w, r, h.log, "Failed to export books", err)
		return
	}

	w.Header().Set("Content-Type", c.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename=books."+c.Format())
	w.Write(buf.Bytes())
}

// Import adds every book of an uploaded catalog
func (h *BookHandler) Import(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	c, err := codec.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, "Invalid format", err.Error(), http.StatusBadRequest)
		return
	}

	ids, err := h.svc.Import(r.Context(), ownerID, c, http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeServiceError(w, r, h.log, "Failed to import books", err)
		return
	}

	writeJSON(w, map[string]interface{}{"ids": ids}, http.StatusOK)
}

// Events streams the caller's book events
func (h *BookHandler) Events(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}
	if h.events == nil {
		writeError(w, "Event stream not configured", "", http.StatusServiceUnavailable)
		return
	}
	h.events.Serve(w, r, ownerID)
}
