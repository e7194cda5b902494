package transfer

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"tapeview/internal/catalog"
)

const sheetName = "Catalog"

var columns = []string{
	"id", "title", "density_gsm", "width_mm", "core_mm", "length_m",
	"price_uah", "old_price_uah", "in_stock", "box_qty", "pack_qty", "url",
}

var specColumns = map[string]bool{"density_gsm": true, "width_mm": true, "core_mm": true, "length_m": true}

func isXLSX(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}

func ExportXLSXName(now time.Time, count int) string {
	return exportName(now, count, "xlsx")
}

// ExportXLSX writes a single sheet with a header row of flat field names.
func ExportXLSX(w io.Writer, items []catalog.Item) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, x := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			x.ID, x.Title,
			cellNumber(x.Spec.DensityGSM), cellNumber(x.Spec.WidthMM), cellNumber(x.Spec.CoreMM), cellNumber(x.Spec.LengthM),
			cellNumber(x.PriceUAH), cellNumber(x.OldPriceUAH),
			x.InStock,
			cellNumber(x.BoxQty), cellNumber(x.PackQty),
			x.URL,
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return f.Write(w)
}

func cellNumber(n *catalog.Number) any {
	if f, ok := n.Finite(); ok {
		return f
	}
	return nil
}

// DecodeXLSX reads the first sheet into the same loose objects a JSON import
// produces. Columns are matched by header name; unknown columns are ignored
// and blank cells are left unset.
func DecodeXLSX(data []byte) ([]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return []any{}, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	list := make([]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		obj := map[string]any{}
		spec := map[string]any{}
		for i, cell := range row {
			if i >= len(header) || strings.TrimSpace(cell) == "" {
				continue
			}
			key := header[i]
			switch {
			case specColumns[key]:
				spec[key] = cell
			case key == "in_stock":
				obj[key] = parseBoolCell(cell)
			case key == "id" || key == "title" || key == "url" ||
				key == "price_uah" || key == "old_price_uah" || key == "box_qty" || key == "pack_qty":
				obj[key] = cell
			}
		}
		obj["spec"] = spec
		list = append(list, obj)
	}
	return list, nil
}

func parseBoolCell(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s == "yes" || s == "y" || s == "так"
}
