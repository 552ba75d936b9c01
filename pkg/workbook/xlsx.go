package workbook

import (
	"fmt"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
	"github.com/xuri/excelize/v2"
)

var _ Document = (*modernDocument)(nil)

type modernDocument struct {
	f        *excelize.File
	path     string
	readOnly bool
	sheets   map[string]*modernSheet
}

type modernSheet struct {
	doc    *modernDocument
	name   string
	maxRow int
}

func openModern(path string, mode Mode) (Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.IOFailure, "workbook.open", fmt.Errorf("open %s: %w", path, err))
	}
	return NewModern(f, path, mode), nil
}

// NewModern wraps an already opened excelize file.
func NewModern(f *excelize.File, path string, mode Mode) Document {
	return &modernDocument{
		f:        f,
		path:     path,
		readOnly: mode == ReadOnly,
		sheets:   make(map[string]*modernSheet),
	}
}

func (d *modernDocument) Path() string   { return d.path }
func (d *modernDocument) Format() Format { return FormatModern }

func (d *modernDocument) SheetCount() int { return len(d.f.GetSheetList()) }

func (d *modernDocument) SheetNames() []string { return d.f.GetSheetList() }

func (d *modernDocument) Sheet(index int) (Sheet, error) {
	names := d.f.GetSheetList()
	if index < 0 || index >= len(names) {
		return nil, apperr.New(apperr.NotFound, "workbook.sheet", "sheet index %d out of range (%d sheets)", index, len(names))
	}
	return d.sheet(names[index])
}

func (d *modernDocument) SheetByName(name string) (Sheet, error) {
	idx, err := d.f.GetSheetIndex(name)
	if err != nil || idx < 0 {
		return nil, apperr.New(apperr.NotFound, "workbook.sheet", "worksheet %q not found in %s", name, d.path)
	}
	return d.sheet(name)
}

func (d *modernDocument) sheet(name string) (*modernSheet, error) {
	if s, ok := d.sheets[name]; ok {
		return s, nil
	}
	rows, err := d.f.GetRows(name)
	if err != nil {
		return nil, apperr.Wrap(apperr.IOFailure, "workbook.sheet", fmt.Errorf("read %s: %w", name, err))
	}
	s := &modernSheet{doc: d, name: name, maxRow: len(rows)}
	d.sheets[name] = s
	return s, nil
}

func (d *modernDocument) Save() error {
	if d.readOnly {
		return apperr.New(apperr.Unsupported, "workbook.save", "%s was opened read-only", d.path)
	}
	if err := d.f.Save(); err != nil {
		return apperr.Wrap(apperr.IOFailure, "workbook.save", err)
	}
	return nil
}

func (d *modernDocument) Close() error {
	return d.f.Close()
}

func (s *modernSheet) Name() string { return s.name }
func (s *modernSheet) MaxRow() int  { return s.maxRow }

func (s *modernSheet) Cell(row, col int) (Cell, error) {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Empty, apperr.Wrap(apperr.InvalidInput, "workbook.cell", err)
	}
	raw, err := s.doc.f.GetCellValue(s.name, axis, excelize.Options{RawCellValue: true})
	if err != nil {
		return Empty, apperr.Wrap(apperr.IOFailure, "workbook.cell", fmt.Errorf("%s[%s]: %w", s.name, axis, err))
	}
	if raw == "" {
		return Empty, nil
	}
	typ, err := s.doc.f.GetCellType(s.name, axis)
	if err != nil {
		return Empty, apperr.Wrap(apperr.IOFailure, "workbook.cell", fmt.Errorf("%s[%s]: %w", s.name, axis, err))
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeDate, excelize.CellTypeBool:
		return parseRaw(raw, true), nil
	}
	return parseRaw(raw, false), nil
}

func (s *modernSheet) SetCell(row, col int, c Cell) error {
	if s.doc.readOnly {
		return apperr.New(apperr.Unsupported, "workbook.set_cell", "%s was opened read-only", s.doc.path)
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return apperr.Wrap(apperr.InvalidInput, "workbook.set_cell", err)
	}
	f := s.doc.f
	switch c.Kind {
	case KindNumber:
		err = f.SetCellFloat(s.name, axis, c.Number, -1, 64)
	case KindText:
		err = f.SetCellStr(s.name, axis, c.Text)
	default:
		err = f.SetCellValue(s.name, axis, nil)
	}
	if err != nil {
		return apperr.Wrap(apperr.IOFailure, "workbook.set_cell", fmt.Errorf("%s[%s]: %w", s.name, axis, err))
	}
	if !c.IsEmpty() && row > s.maxRow {
		s.maxRow = row
	}
	return nil
}
