package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tapeview/internal/transfer"
)

// convert normalizes a catalog file offline, the same way an upload through
// the page would be.
func convert(importPath, exportPath string, stdout io.Writer) error {
	data, err := os.ReadFile(importPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", importPath, err)
	}
	items, err := transfer.Import(filepath.Base(importPath), data)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", importPath, err)
	}

	out := stdout
	if exportPath != "" && exportPath != "-" {
		f, err := os.Create(exportPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportPath, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if strings.EqualFold(filepath.Ext(exportPath), ".xlsx") {
		err = transfer.ExportXLSX(out, items)
	} else {
		err = transfer.Export(out, items)
	}
	if err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}
	slog.Info("catalog converted", "from", importPath, "to", exportPath, "items", len(items))
	return nil
}
