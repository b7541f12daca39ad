package codec

import (
	"fmt"
	"io"

	"booksys/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// ContentType returns the MIME type of exported documents
func (c *YAMLCodec) ContentType() string {
	return "application/x-yaml"
}

// yamlCatalog represents the YAML structure for a catalog
type yamlCatalog struct {
	Version int        `yaml:"version"`
	Books   []yamlBook `yaml:"books"`
}

type yamlBook struct {
	ID          int64          `yaml:"id,omitempty"`
	Title       string         `yaml:"title"`
	ISBN        string         `yaml:"isbn"`
	Author      string         `yaml:"author,omitempty"`
	Publisher   string         `yaml:"publisher,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Cover       string         `yaml:"cover,omitempty"`
	Price       float64        `yaml:"price,omitempty"`
	Extra       map[string]any `yaml:"extra,omitempty"`
}

// Parse imports books from YAML
func (c *YAMLCodec) Parse(r io.Reader) ([]domain.Book, error) {
	var yc yamlCatalog
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&yc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	books := make([]domain.Book, 0, len(yc.Books))
	for _, yb := range yc.Books {
		book := domain.Book{
			ID:          yb.ID,
			Title:       yb.Title,
			ISBN:        yb.ISBN,
			Author:      yb.Author,
			Publisher:   yb.Publisher,
			Description: yb.Description,
			Cover:       yb.Cover,
			Price:       yb.Price,
			Extra:       yb.Extra,
		}
		if book.Extra == nil {
			book.Extra = make(map[string]any)
		}
		books = append(books, book)
	}

	return books, nil
}

// Export exports books to YAML
func (c *YAMLCodec) Export(books []domain.Book, w io.Writer) error {
	yc := yamlCatalog{
		Version: CatalogVersion,
		Books:   make([]yamlBook, 0, len(books)),
	}

	for _, b := range books {
		yc.Books = append(yc.Books, yamlBook{
			ID:          b.ID,
			Title:       b.Title,
			ISBN:        b.ISBN,
			Author:      b.Author,
			Publisher:   b.Publisher,
			Description: b.Description,
			Cover:       b.Cover,
			Price:       b.Price,
			Extra:       b.Extra,
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&yc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
