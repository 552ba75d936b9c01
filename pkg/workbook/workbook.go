// Package workbook abstracts the two on-disk spreadsheet encodings behind one
// row/column model. Rows and columns are 1-based.
package workbook

import (
	"path/filepath"
	"strings"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
)

// Format identifies the on-disk encoding of a workbook.
type Format string

const (
	FormatModern Format = "xlsx"
	FormatLegacy Format = "xls"
)

// Mode selects how a workbook is opened.
type Mode int

const (
	ReadWrite Mode = iota
	ReadOnly
)

// Document is an opened workbook.
type Document interface {
	Path() string
	Format() Format
	SheetCount() int
	SheetNames() []string
	// Sheet returns the sheet at the 0-based position index.
	Sheet(index int) (Sheet, error)
	// SheetByName fails with apperr.NotFound if no sheet has that name.
	SheetByName(name string) (Sheet, error)
	// Save persists edits to Path.
	Save() error
	Close() error
}

// Sheet is a grid of cells. Writing beyond MaxRow extends the sheet.
type Sheet interface {
	Name() string
	// MaxRow is the last row holding any value.
	MaxRow() int
	Cell(row, col int) (Cell, error)
	SetCell(row, col int, c Cell) error
}

// FormatOf maps a file name to its workbook format.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatModern, nil
	case ".xls":
		return FormatLegacy, nil
	}
	return "", apperr.New(apperr.Unsupported, "workbook.open", "unsupported file type %q", filepath.Ext(path))
}

// Open opens the workbook at path with the adapter matching its extension.
func Open(path string, mode Mode) (Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatLegacy:
		return openLegacy(path)
	default:
		return openModern(path, mode)
	}
}

// CellText reads a cell and returns its textual form, or "" on error.
func CellText(s Sheet, row, col int) string {
	c, err := s.Cell(row, col)
	if err != nil {
		return ""
	}
	return c.String()
}

// RowEmpty reports whether every listed column of row is empty.
func RowEmpty(s Sheet, row int, cols []int) (bool, error) {
	for _, col := range cols {
		c, err := s.Cell(row, col)
		if err != nil {
			return false, err
		}
		if !c.IsEmpty() {
			return false, nil
		}
	}
	return true, nil
}
