package workbook

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CellKind tags the content of a Cell.
type CellKind int

const (
	KindEmpty CellKind = iota
	KindText
	KindNumber
)

// Cell is the content of a single spreadsheet cell.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

// Empty is the absent cell.
var Empty = Cell{}

// Text returns a text cell. The empty string yields an empty cell.
func Text(s string) Cell {
	if s == "" {
		return Empty
	}
	return Cell{Kind: KindText, Text: s}
}

// Number returns a numeric cell.
func Number(f float64) Cell {
	return Cell{Kind: KindNumber, Number: f}
}

// Decimal returns a numeric cell holding d.
func Decimal(d decimal.Decimal) Cell {
	f, _ := d.Float64()
	return Number(f)
}

// IsEmpty reports whether the cell is absent or holds the empty string.
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case KindEmpty:
		return true
	case KindText:
		return c.Text == ""
	}
	return false
}

// String renders the cell the way it is compared textually.
func (c Cell) String() string {
	switch c.Kind {
	case KindText:
		return c.Text
	case KindNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	}
	return ""
}

// Decimal interprets the cell as an amount. ok is false for empty cells and
// text that does not parse as a number.
func (c Cell) Decimal() (d decimal.Decimal, ok bool) {
	switch c.Kind {
	case KindNumber:
		return decimal.NewFromFloat(c.Number), true
	case KindText:
		d, err := decimal.NewFromString(strings.TrimSpace(c.Text))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

// parseRaw classifies a raw string value read from a workbook. Values that
// parse as floats become numbers unless forceText is set.
func parseRaw(raw string, forceText bool) Cell {
	if raw == "" {
		return Empty
	}
	if !forceText {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return Number(f)
		}
	}
	return Text(raw)
}
