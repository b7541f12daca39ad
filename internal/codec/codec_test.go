package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booksys/internal/domain"
)

func sampleBooks() []domain.Book {
	return []domain.Book{
		{
			ID:        1,
			Title:     "The Go Programming Language",
			ISBN:      "9780134190440",
			Author:    "Donovan, Kernighan",
			Publisher: "Addison-Wesley",
			Price:     34.99,
			Extra:     map[string]any{"shelf": "A3"},
		},
		{
			ID:    2,
			Title: "Notes",
			ISBN:  "9787111547426",
			Extra: map[string]any{},
		},
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		name   string
		format string
		ok     bool
	}{
		{"empty defaults to json", "", true},
		{"json", "JSON", true},
		{"yaml", "yaml", true},
		{"yml alias", "yml", true},
		{"csv unsupported", "csv", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ForFormat(tt.format)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, c.Format())
		})
	}
}

func TestJSONExportParse(t *testing.T) {
	c := NewJSONCodec()

	var buf bytes.Buffer
	require.NoError(t, c.Export(sampleBooks(), &buf))
	assert.Contains(t, buf.String(), `"version": 1`)

	books, err := c.Parse(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleBooks(), books, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("books mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONParseBareArray(t *testing.T) {
	books, err := NewJSONCodec().Parse(strings.NewReader(`[{"title":"Go","isbn":"978-0-13-419044-0"}]`))
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Go", books[0].Title)
}

func TestJSONParseInvalid(t *testing.T) {
	_, err := NewJSONCodec().Parse(strings.NewReader(`{"books": 3}`))
	assert.Error(t, err)

	_, err = NewJSONCodec().Parse(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestJSONExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONCodec().Export(nil, &buf))
	assert.Contains(t, buf.String(), `"books": []`)
}

func TestYAMLExportParse(t *testing.T) {
	c := NewYAMLCodec()

	var buf bytes.Buffer
	require.NoError(t, c.Export(sampleBooks(), &buf))
	assert.Contains(t, buf.String(), "version: 1")
	assert.Contains(t, buf.String(), "shelf: A3")

	books, err := c.Parse(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleBooks(), books, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("books mismatch (-want +got):\n%s", diff)
	}
}

func TestYAMLParse(t *testing.T) {
	doc := `
books:
  - title: Go
    isbn: 978-0-13-419044-0
    extra:
      tags: [novel, signed]
`
	books, err := NewYAMLCodec().Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "978-0-13-419044-0", books[0].ISBN)
	assert.Equal(t, []any{"novel", "signed"}, books[0].Extra["tags"])

	empty, err := NewYAMLCodec().Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = NewYAMLCodec().Parse(strings.NewReader("books: [:"))
	assert.Error(t, err)
}
