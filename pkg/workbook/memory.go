package workbook

import (
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
)

var _ Sheet = (*Grid)(nil)

// Grid is an in-memory Sheet. It backs legacy workbooks after they are
// decoded and is convenient for exercising search logic.
type Grid struct {
	name     string
	cells    map[[2]int]Cell
	maxRow   int
	readOnly bool
	path     string
}

// NewGrid returns an empty writable grid.
func NewGrid(name string) *Grid {
	return &Grid{name: name, cells: make(map[[2]int]Cell)}
}

func (g *Grid) Name() string { return g.name }
func (g *Grid) MaxRow() int  { return g.maxRow }

func (g *Grid) Cell(row, col int) (Cell, error) {
	if row < 1 || col < 1 {
		return Empty, apperr.New(apperr.InvalidInput, "workbook.cell", "invalid coordinates %d,%d", row, col)
	}
	return g.cells[[2]int{row, col}], nil
}

func (g *Grid) SetCell(row, col int, c Cell) error {
	if g.readOnly {
		if g.path != "" {
			return ReadOnlyError("workbook.set_cell", g.path)
		}
		return apperr.New(apperr.Unsupported, "workbook.set_cell", "sheet %q is read-only", g.name)
	}
	return g.put(row, col, c)
}

// Set is SetCell for fixtures: it panics on invalid coordinates.
func (g *Grid) Set(row, col int, c Cell) *Grid {
	if err := g.put(row, col, c); err != nil {
		panic(err)
	}
	return g
}

func (g *Grid) put(row, col int, c Cell) error {
	if row < 1 || col < 1 {
		return apperr.New(apperr.InvalidInput, "workbook.set_cell", "invalid coordinates %d,%d", row, col)
	}
	key := [2]int{row, col}
	if c.IsEmpty() {
		delete(g.cells, key)
		return nil
	}
	g.cells[key] = c
	if row > g.maxRow {
		g.maxRow = row
	}
	return nil
}

// memoryDocument is a Document over a list of grids.
type memoryDocument struct {
	path   string
	format Format
	sheets []*Grid
	save   func() error
}

// NewMemory returns a writable in-memory document over sheets. Save is a no-op.
func NewMemory(path string, sheets ...*Grid) Document {
	return &memoryDocument{path: path, format: FormatModern, sheets: sheets}
}

func (d *memoryDocument) Path() string   { return d.path }
func (d *memoryDocument) Format() Format { return d.format }

func (d *memoryDocument) SheetCount() int { return len(d.sheets) }

func (d *memoryDocument) SheetNames() []string {
	names := make([]string, len(d.sheets))
	for i, s := range d.sheets {
		names[i] = s.name
	}
	return names
}

func (d *memoryDocument) Sheet(index int) (Sheet, error) {
	if index < 0 || index >= len(d.sheets) {
		return nil, apperr.New(apperr.NotFound, "workbook.sheet", "sheet index %d out of range (%d sheets)", index, len(d.sheets))
	}
	return d.sheets[index], nil
}

func (d *memoryDocument) SheetByName(name string) (Sheet, error) {
	for _, s := range d.sheets {
		if s.name == name {
			return s, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "workbook.sheet", "worksheet %q not found in %s", name, d.path)
}

func (d *memoryDocument) Save() error {
	if d.save != nil {
		return d.save()
	}
	return nil
}

func (d *memoryDocument) Close() error { return nil }
