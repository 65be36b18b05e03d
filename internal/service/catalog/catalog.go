package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jwalitptl/labreport/internal/model"
)

//go:embed reports.json
var defaultCatalog []byte

var ErrUnknownReport = errors.New("unknown report type")

type rowJSON struct {
	Name  string `json:"name"`
	Range string `json:"range"`
	Unit  string `json:"unit"`
}

// Catalog maps report types to their default rows. It is read-only after
// loading and safe for concurrent use.
type Catalog struct {
	types []string
	rows  map[string][]model.CatalogRow
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(bytes.NewReader(defaultCatalog))
}

// Load reads a catalog file, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a JSON object of report type to rows. Report types keep the
// order they appear in, which encoding/json maps would lose.
func Parse(r io.Reader) (*Catalog, error) {
	dec := json.NewDecoder(r)

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	c := &Catalog{rows: map[string][]model.CatalogRow{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("invalid catalog key %v", tok)
		}

		var raw []rowJSON
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid rows for %q: %w", name, err)
		}
		if _, dup := c.rows[name]; dup {
			return nil, fmt.Errorf("duplicate report type %q", name)
		}

		rows := make([]model.CatalogRow, 0, len(raw))
		for _, r := range raw {
			rows = append(rows, model.NewCatalogRow(r.Name, r.Range, r.Unit))
		}
		c.types = append(c.types, name)
		c.rows[name] = rows
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return c, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("invalid catalog: expected %q, got %v", want, tok)
	}
	return nil
}

// Types lists report types in catalog order.
func (c *Catalog) Types() []string {
	return append([]string(nil), c.types...)
}

// Rows returns a copy of the rows of reportType in catalog order.
func (c *Catalog) Rows(reportType string) ([]model.CatalogRow, error) {
	rows, ok := c.rows[reportType]
	if !ok {
		return nil, ErrUnknownReport
	}
	return append([]model.CatalogRow(nil), rows...), nil
}
