package xlsx

import (
	"bytes"
	"strconv"
)

// sheetByDescriptor is the getOrMaterialize path: a cache hit returns the
// existing snapshot and marks it most-recently-used; a miss parses the
// worksheet part, resolves shared strings, pads row gaps and inserts the
// result. The first access per sheet pays the full parse cost, later
// accesses are O(1) grid lookups.
func (w *Workbook) sheetByDescriptor(d SheetDescriptor) (*Sheet, error) {
	if s, ok := w.cache.get(d.Name); ok {
		w.log.Debug().Str("sheet", d.Name).Msg("sheet cache hit")
		return s, nil
	}

	// A descriptor whose part is absent is unreadable; that is distinct
	// from a present-but-empty sheet and is reported, never skipped.
	if !w.container.HasEntry(d.Path) {
		return nil, NewParseError(d.Path, 0, "worksheet part missing for sheet %q", d.Name)
	}
	data, err := w.container.ReadEntryBytes(d.Path)
	if err != nil {
		return nil, err
	}

	w.parseCount++
	s, err := materializeSheet(d.Name, d.Path, data, w.res.sst, w.parseOptions())
	if err != nil {
		// Nothing is cached on failure; a snapshot is never partially
		// populated.
		return nil, err
	}
	w.cache.add(d.Name, s)
	w.log.Debug().
		Str("sheet", d.Name).
		Int("rows", s.NRows).
		Int("cols", s.NCols).
		Msg("sheet materialized")
	return s, nil
}

// materializeSheet drives the streaming parser over one worksheet part
// and accumulates rows into a grid whose row index equals the array
// index, with unseen rows left as empty placeholders.
func materializeSheet(name, part string, data []byte, sst *SharedStringTable, opts ParseOptions) (*Sheet, error) {
	s := &Sheet{Name: name}
	p := NewParser(part, opts)
	p.OnRows(func(rows []RowRecord) error {
		for _, row := range rows {
			if err := appendRow(s, part, row, sst); err != nil {
				return err
			}
		}
		return nil
	})
	if err := p.Parse(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	s.NRows = len(s.rows)
	return s, nil
}

func appendRow(s *Sheet, part string, row RowRecord, sst *SharedStringTable) error {
	rowx := row.Index - 1
	if rowx < 0 {
		return NewParseError(part, 0, "row number %d out of range", row.Index)
	}
	for len(s.rows) <= rowx {
		s.rows = append(s.rows, nil)
	}

	cells := make([]Cell, 0, len(row.Cells))
	nextCol := 1
	for _, rec := range row.Cells {
		col := nextCol
		if rec.Ref != "" {
			addr, err := ParseAddress(rec.Ref)
			if err != nil {
				return NewParseError(part, 0, "invalid cell reference %q in row %d", rec.Ref, row.Index)
			}
			col = addr.Col
		}
		nextCol = col + 1

		cell, err := resolveCell(part, rec, sst)
		if err != nil {
			return err
		}
		for len(cells) < col-1 {
			cells = append(cells, emptyCell)
		}
		cells = append(cells, cell)
		if col > s.NCols {
			s.NCols = col
		}
	}
	s.rows[rowx] = cells
	return nil
}

// resolveCell interprets one cell record's accumulated text according to
// its type marker. Shared-string indices are resolved here, against the
// table built at open time.
func resolveCell(part string, rec CellRecord, sst *SharedStringTable) (Cell, error) {
	cell := Cell{XFIndex: rec.Style}
	switch rec.Type {
	case CellTypeSharedString:
		idx, err := strconv.Atoi(rec.Value)
		if err != nil {
			return cell, NewParseError(part, 0, "invalid shared string index %q in cell %s", rec.Value, rec.Ref)
		}
		text, err := sst.At(idx)
		if err != nil {
			return cell, NewParseError(part, 0, "cell %s: %v", rec.Ref, err)
		}
		cell.CType = CTypeText
		cell.Value = text
	case CellTypeNumber:
		if rec.Value == "" {
			cell.CType = CTypeEmpty
			return cell, nil
		}
		n, err := strconv.ParseFloat(rec.Value, 64)
		if err != nil {
			return cell, NewParseError(part, 0, "invalid numeric value %q in cell %s", rec.Value, rec.Ref)
		}
		cell.CType = CTypeNumber
		cell.Value = n
	case CellTypeBoolean:
		cell.CType = CTypeBoolean
		cell.Value = rec.Value == "1" || rec.Value == "true"
	case CellTypeFormulaString, CellTypeInlineString:
		cell.CType = CTypeText
		cell.Value = rec.Value
	case CellTypeError:
		cell.CType = CTypeError
		cell.Value = rec.Value
	}
	return cell, nil
}
