package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"booksys/internal/codec"
	"booksys/internal/domain"
	"booksys/internal/metrics"
	"booksys/internal/repository"
)

const (
	DefaultPageSize = 20
	DefaultMaxPage  = 100
)

// BookServiceConfig bounds list queries
type BookServiceConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// BatchResult splits the ids of a batch operation by outcome
type BatchResult struct {
	Succ []int64 `json:"succ"`
	Fail []int64 `json:"fail"`
}

func newBatchResult() *BatchResult {
	return &BatchResult{Succ: []int64{}, Fail: []int64{}}
}

// BookService provides business logic for an owner's books
type BookService struct {
	store    repository.BookStore
	eventBus *EventBus
	cfg      BookServiceConfig
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewBookService creates a new book service
func NewBookService(store repository.BookStore, eventBus *EventBus, cfg BookServiceConfig, log logrus.FieldLogger) *BookService {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = DefaultMaxPage
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BookService{
		store:    store,
		eventBus: eventBus,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Add validates every book and then stores them all, returning the new ids
// in input order. Nothing is stored if any book is invalid.
func (s *BookService) Add(ctx context.Context, ownerID string, books []domain.Book) ([]int64, error) {
	for i := range books {
		books[i].Normalize()
		if err := books[i].Validate(); err != nil {
			return nil, fmt.Errorf("book %d: %w", i, err)
		}
	}

	now := s.now()
	ids := make([]int64, 0, len(books))
	for i := range books {
		book := &books[i]
		book.OwnerID = ownerID
		book.CreatedAt = now
		book.UpdatedAt = now

		err := s.store.CreateBook(ctx, book)
		metrics.BookOps.WithLabelValues("add", metrics.Outcome(err)).Inc()
		if err != nil {
			return ids, err
		}
		ids = append(ids, book.ID)

		s.eventBus.Publish(Event{
			Type:    EventBookCreated,
			OwnerID: ownerID,
			Payload: map[string]int64{"book_id": book.ID},
		})
	}

	return ids, nil
}

// Query lists the owner's books matching filter, ordered by title
func (s *BookService) Query(ctx context.Context, ownerID string, filter domain.BookFilter, page domain.Page) ([]domain.Book, error) {
	page, err := s.normalizePage(page)
	if err != nil {
		return nil, err
	}
	filter.ISBN = domain.NormalizeISBN(filter.ISBN)
	filter.Title = strings.TrimSpace(filter.Title)

	return s.store.ListBooks(ctx, ownerID, filter, page)
}

func (s *BookService) normalizePage(page domain.Page) (domain.Page, error) {
	switch {
	case page.Size < 0:
		return page, &domain.ValidationError{Field: "page_size", Reason: "must be at least 1"}
	case page.Size == 0:
		page.Size = s.cfg.DefaultPageSize
	case page.Size > s.cfg.MaxPageSize:
		page.Size = s.cfg.MaxPageSize
	}
	if page.Offset < 0 {
		return page, &domain.ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	return page, nil
}

// Count returns how many books the owner has
func (s *BookService) Count(ctx context.Context, ownerID string) (int64, error) {
	return s.store.CountBooks(ctx, ownerID)
}

// Get retrieves one of the owner's books
func (s *BookService) Get(ctx context.Context, ownerID string, id int64) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, fmt.Errorf("book %d: %w", id, domain.ErrNotFound)
	}
	return book, nil
}

// Modify applies patches to the owner's books. Every patch is validated
// before any book is touched; ids that do not exist or belong to someone
// else are reported in Fail.
func (s *BookService) Modify(ctx context.Context, ownerID string, patches []domain.BookPatch) (*BatchResult, error) {
	for i := range patches {
		if err := validatePatch(&patches[i]); err != nil {
			return nil, fmt.Errorf("book %d: %w", patches[i].ID, err)
		}
	}

	result := newBatchResult()
	for i := range patches {
		patch := &patches[i]
		ok, err := s.modifyOne(ctx, ownerID, patch)
		metrics.BookOps.WithLabelValues("modify", metrics.Outcome(err)).Inc()
		if err != nil {
			s.log.WithError(err).WithField("book_id", patch.ID).Warn("failed to modify book")
		}
		if !ok {
			result.Fail = append(result.Fail, patch.ID)
			continue
		}
		result.Succ = append(result.Succ, patch.ID)
	}

	return result, nil
}

func (s *BookService) modifyOne(ctx context.Context, ownerID string, patch *domain.BookPatch) (bool, error) {
	book, err := s.store.GetBook(ctx, ownerID, patch.ID)
	if err != nil || book == nil {
		return false, err
	}
	if patch.Empty() {
		return true, nil
	}

	patch.Apply(book)
	if err := book.Validate(); err != nil {
		return false, err
	}
	book.UpdatedAt = s.now()

	ok, err := s.store.UpdateBook(ctx, book)
	if err != nil || !ok {
		return false, err
	}

	s.eventBus.Publish(Event{
		Type:    EventBookUpdated,
		OwnerID: ownerID,
		Payload: map[string]int64{"book_id": book.ID},
	})
	return true, nil
}

// validatePatch checks the fields a patch sets, without loading the book
func validatePatch(p *domain.BookPatch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if p.ISBN != nil {
		if err := domain.ValidateISBN(domain.NormalizeISBN(*p.ISBN)); err != nil {
			return err
		}
	}
	if p.Cover != nil {
		if err := domain.ValidateCover(strings.TrimSpace(*p.Cover)); err != nil {
			return err
		}
	}
	if p.Price != nil && *p.Price < 0 {
		return &domain.ValidationError{Field: "price", Reason: "must not be negative"}
	}
	return nil
}

// Delete removes the owner's books by id
func (s *BookService) Delete(ctx context.Context, ownerID string, ids []int64) (*BatchResult, error) {
	result := newBatchResult()
	for _, id := range ids {
		ok, err := s.store.DeleteBook(ctx, ownerID, id)
		metrics.BookOps.WithLabelValues("delete", metrics.Outcome(err)).Inc()
		if err != nil {
			s.log.WithError(err).WithField("book_id", id).Warn("failed to delete book")
		}
		if !ok {
			result.Fail = append(result.Fail, id)
			continue
		}
		result.Succ = append(result.Succ, id)

		s.eventBus.Publish(Event{
			Type:    EventBookDeleted,
			OwnerID: ownerID,
			Payload: map[string]int64{"book_id": id},
		})
	}
	return result, nil
}

// Export writes every book of the owner with the given exporter
func (s *BookService) Export(ctx context.Context, ownerID string, exporter codec.Exporter, w io.Writer) error {
	books, err := s.store.ListBooks(ctx, ownerID, domain.BookFilter{}, domain.Page{})
	if err != nil {
		return err
	}
	return exporter.Export(books, w)
}

// Import parses a catalog and adds its books to the owner's. Ids in the
// document are ignored.
func (s *BookService) Import(ctx context.Context, ownerID string, importer codec.Importer, r io.Reader) ([]int64, error) {
	books, err := importer.Parse(r)
	if err != nil {
		return nil, &domain.ValidationError{Field: "document", Reason: err.Error()}
	}
	for i := range books {
		books[i].ID = 0
	}

	ids, err := s.Add(ctx, ownerID, books)
	if err != nil {
		return ids, err
	}

	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "format": importer.Format(), "count": len(ids)}).Info("imported books")
	s.eventBus.Publish(Event{
		Type:    EventBooksImported,
		OwnerID: ownerID,
		Payload: map[string]int{"count": len(ids)},
	})
	return ids, nil
}
