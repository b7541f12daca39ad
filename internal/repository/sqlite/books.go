package sqlite

import (
	"context"
	"fmt"

	"booksys/internal/domain"
	"booksys/internal/table"
)

const booksTable = "books"

// bookSchema declares the books table. Column order is the table layout.
var bookSchema = table.Schema{
	{Name: "owner_id", Type: table.Text},
	{Name: "title", Type: table.Text},
	{Name: "isbn", Type: table.Text},
	{Name: "author", Type: table.Text},
	{Name: "publisher", Type: table.Text},
	{Name: "description", Type: table.Text},
	{Name: "cover", Type: table.Text},
	{Name: "price", Type: table.Real},
	{Name: "extra", Type: table.JSON},
	{Name: "created_at", Type: table.Integer},
	{Name: "updated_at", Type: table.Integer},
}

func (r *Repository) initBooks(ctx context.Context) error {
	books, err := table.New(ctx, r.db, booksTable, bookSchema, table.WithIndex("owner_id", "title"))
	if err != nil {
		return fmt.Errorf("failed to declare books table: %w", err)
	}
	r.books = books
	return nil
}

// CreateBook inserts a book and sets its ID
func (r *Repository) CreateBook(ctx context.Context, book *domain.Book) error {
	row := bookRow(book)
	row["owner_id"] = book.OwnerID
	row["created_at"] = toMillis(book.CreatedAt)

	id, err := r.books.Add(ctx, row)
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	book.ID = id
	return nil
}

// GetBook retrieves a book owned by ownerID
func (r *Repository) GetBook(ctx context.Context, ownerID string, id int64) (*domain.Book, error) {
	rows, err := r.books.Search(ctx, table.Query{
		Equal: table.Row{table.IDField: id, "owner_id": ownerID},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query book: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToBook(rows[0]), nil
}

// ListBooks returns the owner's books matching filter, ordered by title
func (r *Repository) ListBooks(ctx context.Context, ownerID string, filter domain.BookFilter, page domain.Page) ([]domain.Book, error) {
	rows, err := r.books.Search(ctx, table.Query{
		Equal:    table.Row{"owner_id": ownerID},
		Contains: filterToContains(filter),
		OrderBy:  []string{"title", table.IDField},
		Limit:    page.Size,
		Offset:   page.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	books := make([]domain.Book, 0, len(rows))
	for _, row := range rows {
		books = append(books, *rowToBook(row))
	}
	return books, nil
}

// CountBooks returns how many books the owner has
func (r *Repository) CountBooks(ctx context.Context, ownerID string) (int64, error) {
	n, err := r.books.Count(ctx, table.Query{Equal: table.Row{"owner_id": ownerID}})
	if err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return n, nil
}

// UpdateBook overwrites the mutable fields of a book
func (r *Repository) UpdateBook(ctx context.Context, book *domain.Book) (bool, error) {
	n, err := r.books.ModifyWhere(ctx,
		table.Row{table.IDField: book.ID, "owner_id": book.OwnerID},
		bookRow(book),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update book: %w", err)
	}
	return n > 0, nil
}

// DeleteBook removes a book owned by ownerID
func (r *Repository) DeleteBook(ctx context.Context, ownerID string, id int64) (bool, error) {
	n, err := r.books.DeleteWhere(ctx, table.Row{table.IDField: id, "owner_id": ownerID})
	if err != nil {
		return false, fmt.Errorf("failed to delete book: %w", err)
	}
	return n > 0, nil
}

// bookRow holds the mutable columns of a book
func bookRow(b *domain.Book) table.Row {
	extra := b.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	return table.Row{
		"title":       b.Title,
		"isbn":        b.ISBN,
		"author":      b.Author,
		"publisher":   b.Publisher,
		"description": b.Description,
		"cover":       b.Cover,
		"price":       b.Price,
		"extra":       extra,
		"updated_at":  toMillis(b.UpdatedAt),
	}
}

func rowToBook(row table.Row) *domain.Book {
	b := &domain.Book{
		ID:          row[table.IDField].(int64),
		OwnerID:     row["owner_id"].(string),
		Title:       row["title"].(string),
		ISBN:        row["isbn"].(string),
		Author:      row["author"].(string),
		Publisher:   row["publisher"].(string),
		Description: row["description"].(string),
		Cover:       row["cover"].(string),
		Price:       row["price"].(float64),
		CreatedAt:   fromMillis(row["created_at"].(int64)),
		UpdatedAt:   fromMillis(row["updated_at"].(int64)),
	}
	if extra, ok := row["extra"].(map[string]any); ok {
		b.Extra = extra
	} else {
		b.Extra = map[string]any{}
	}
	return b
}

func filterToContains(f domain.BookFilter) map[string]string {
	c := make(map[string]string)
	for field, v := range map[string]string{
		"title":       f.Title,
		"isbn":        f.ISBN,
		"author":      f.Author,
		"publisher":   f.Publisher,
		"description": f.Description,
		"extra":       f.Extra,
	} {
		if v != "" {
			c[field] = v
		}
	}
	return c
}
