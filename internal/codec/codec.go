// Package codec converts book catalogs to and from interchange formats.
package codec

import (
	"fmt"
	"io"
	"strings"

	"booksys/internal/domain"
)

// CatalogVersion is written into every exported document
const CatalogVersion = 1

// Importer interface for importing books from various formats
type Importer interface {
	Parse(r io.Reader) ([]domain.Book, error)
	Format() string
}

// Exporter interface for exporting books to various formats
type Exporter interface {
	Export(books []domain.Book, w io.Writer) error
	Format() string
	ContentType() string
}

// Codec both imports and exports one format
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec registered under name
func ForFormat(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", name)
	}
}
