package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"booksys/internal/domain"
)

// jsonCatalog is the exported document. Parse also accepts a bare array.
type jsonCatalog struct {
	Version int           `json:"version"`
	Books   []domain.Book `json:"books"`
}

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// ContentType returns the MIME type of exported documents
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Parse imports books from JSON
func (c *JSONCodec) Parse(r io.Reader) ([]domain.Book, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	var books []domain.Book
	if err := json.Unmarshal(raw, &books); err == nil {
		return books, nil
	}

	var doc jsonCatalog
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return doc.Books, nil
}

// Export exports books to JSON
func (c *JSONCodec) Export(books []domain.Book, w io.Writer) error {
	if books == nil {
		books = []domain.Book{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(jsonCatalog{Version: CatalogVersion, Books: books}); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
