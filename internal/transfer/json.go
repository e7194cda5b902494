// Package transfer converts between the catalog and files: pretty JSON for
// export, several JSON shapes and XLSX for import.
package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tidwall/gjson"

	"tapeview/internal/catalog"
)

var (
	ErrInvalidJSON      = errors.New("file is not valid JSON")
	ErrUnsupportedShape = errors.New(`expected an array or an object with "items", "products" or "data" holding an array`)
)

// wrapperKeys are probed in order; the first one holding an array wins.
var wrapperKeys = []string{"items", "products", "data"}

// Export writes items as a two-space indented JSON array.
func Export(w io.Writer, items []catalog.Item) error {
	if items == nil {
		items = []catalog.Item{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(items)
}

// ExportName is tape_export_<local timestamp>_<count>.json.
func ExportName(now time.Time, count int) string {
	return exportName(now, count, "json")
}

func exportName(now time.Time, count int, ext string) string {
	return fmt.Sprintf("tape_export_%s_%d.%s", now.Format("2006-01-02_150405"), count, ext)
}

// DecodeJSON extracts the raw list of products from an import file.
func DecodeJSON(data []byte) ([]any, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)
	raw := ""
	switch {
	case root.IsArray():
		raw = root.Raw
	case root.IsObject():
		for _, key := range wrapperKeys {
			if r := root.Get(key); r.IsArray() {
				raw = r.Raw
				break
			}
		}
	}
	if raw == "" {
		return nil, ErrUnsupportedShape
	}
	var list []any
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return list, nil
}

// Import decodes and normalizes an import file by name, picking the format
// from its extension.
func Import(name string, data []byte) ([]catalog.Item, error) {
	var (
		raw []any
		err error
	)
	if isXLSX(name) {
		raw, err = DecodeXLSX(data)
	} else {
		raw, err = DecodeJSON(data)
	}
	if err != nil {
		return nil, err
	}
	return catalog.Normalize(raw)
}
