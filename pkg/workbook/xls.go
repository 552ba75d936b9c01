package workbook

import (
	"fmt"

	"github.com/extrame/xls"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
)

// LegacyCharset is the code page used when decoding BIFF strings.
const LegacyCharset = "utf-8"

// maxLegacyColumns is the BIFF8 column limit.
const maxLegacyColumns = 256

// openLegacy decodes a BIFF (.xls) workbook into read-only grids. There is
// no BIFF writer, so SetCell and Save fail with apperr.Unsupported.
func openLegacy(path string) (Document, error) {
	wb, err := xls.Open(path, LegacyCharset)
	if err != nil {
		return nil, apperr.Wrap(apperr.IOFailure, "workbook.open", fmt.Errorf("open %s: %w", path, err))
	}
	if wb == nil {
		return nil, apperr.New(apperr.IOFailure, "workbook.open", "%s has no workbook stream", path)
	}
	doc := &memoryDocument{
		path:   path,
		format: FormatLegacy,
		save: func() error {
			return ReadOnlyError("workbook.save", path)
		},
	}
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		g := NewGrid(ws.Name)
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := legacyRow(ws, r)
			if row == nil {
				continue
			}
			// Rows without a ROW record report no column bounds.
			first, last := row.FirstCol(), row.LastCol()
			if last <= first {
				first, last = 0, maxLegacyColumns
			}
			for c := first; c < last; c++ {
				if v := row.Col(c); v != "" {
					g.Set(r+1, c+1, parseRaw(v, false))
				}
			}
		}
		g.readOnly = true
		g.path = path
		doc.sheets = append(doc.sheets, g)
	}
	return doc, nil
}

// legacyRow returns row r of ws, or nil when the sheet holds nothing on it.
// The decoder dereferences missing rows, so the lookup is guarded.
func legacyRow(ws *xls.WorkSheet, r int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(r)
}

// ReadOnlyError reports an attempt to write a legacy workbook.
func ReadOnlyError(op, path string) error {
	return apperr.New(apperr.Unsupported, op, "legacy workbook %s cannot be written; convert it to .xlsx", path)
}
