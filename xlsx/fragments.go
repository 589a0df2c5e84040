package xlsx

import (
	"fmt"
	"io"
	"strconv"
)

const (
	mainNS = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	relNS  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	pkgNS  = "http://schemas.openxmlformats.org/package/2006/relationships"
)

// SheetWriter streams one worksheet part: the caller emits row and cell
// events and receives well-formed worksheet XML, with strings classified
// inline-vs-shared through the session's intern table.
//
// Call order: Begin, then Row/Cell events in ascending order, then End.
type SheetWriter struct {
	xw     *XMLWriter
	intern *StringIntern
	inRow  bool
}

// NewSheetWriter creates a worksheet stream over sink. The intern table
// is shared across all sheets of one write session so indices stay
// consistent; pass nil to write every string inline.
func NewSheetWriter(sink io.Writer, intern *StringIntern) *SheetWriter {
	return &SheetWriter{xw: NewXMLWriter(sink, 0), intern: intern}
}

// Begin opens the worksheet with a dimension declaration summarizing the
// used range. nrows/ncols of zero write an empty "A1" dimension.
func (sw *SheetWriter) Begin(nrows, ncols int) error {
	if err := sw.xw.WriteDeclaration(); err != nil {
		return err
	}
	if err := sw.xw.StartElement("worksheet"); err != nil {
		return err
	}
	if err := sw.xw.AddAttribute("xmlns", mainNS); err != nil {
		return err
	}
	if err := sw.xw.AddAttribute("xmlns:r", relNS); err != nil {
		return err
	}
	dim := "A1"
	if nrows > 0 && ncols > 0 {
		dim = "A1:" + FormatAddress(CellAddress{Row: nrows, Col: ncols})
	}
	if err := sw.xw.StartElement("dimension"); err != nil {
		return err
	}
	if err := sw.xw.AddAttribute("ref", dim); err != nil {
		return err
	}
	if err := sw.xw.EndElement("dimension"); err != nil {
		return err
	}
	return sw.xw.StartElement("sheetData")
}

// Row opens a new row with the given 1-based index, closing any previous
// one.
func (sw *SheetWriter) Row(index int) error {
	if err := sw.closeRow(); err != nil {
		return err
	}
	if err := sw.xw.StartElement("row"); err != nil {
		return err
	}
	if err := sw.xw.AddAttribute("r", strconv.Itoa(index)); err != nil {
		return err
	}
	sw.inRow = true
	return nil
}

func (sw *SheetWriter) closeRow() error {
	if !sw.inRow {
		return nil
	}
	sw.inRow = false
	return sw.xw.EndElement("row")
}

// Cell emits one cell into the current row. Supported value types:
// string, float64, int, bool, and nil for an empty cell.
func (sw *SheetWriter) Cell(addr CellAddress, value interface{}) error {
	if !sw.inRow {
		return NewWriteError("Cell", "cell %s outside a row", addr)
	}
	if err := sw.xw.StartElement("c"); err != nil {
		return err
	}
	if err := sw.xw.AddAttribute("r", addr.String()); err != nil {
		return err
	}
	switch v := value.(type) {
	case nil:
	case string:
		if err := sw.writeString(v); err != nil {
			return err
		}
	case float64:
		if err := sw.writeValue(strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
			return err
		}
	case int:
		if err := sw.writeValue(strconv.Itoa(v)); err != nil {
			return err
		}
	case bool:
		if err := sw.xw.AddAttribute("t", "b"); err != nil {
			return err
		}
		b := "0"
		if v {
			b = "1"
		}
		if err := sw.writeValue(b); err != nil {
			return err
		}
	default:
		return NewWriteError("Cell", "unsupported cell value type %T", value)
	}
	return sw.xw.EndElement("c")
}

func (sw *SheetWriter) writeValue(text string) error {
	if err := sw.xw.StartElement("v"); err != nil {
		return err
	}
	if err := sw.xw.WriteText(text); err != nil {
		return err
	}
	return sw.xw.EndElement("v")
}

func (sw *SheetWriter) writeString(s string) error {
	if sw.intern != nil {
		if idx, shared := sw.intern.Add(s); shared {
			if err := sw.xw.AddAttribute("t", "s"); err != nil {
				return err
			}
			return sw.writeValue(strconv.Itoa(idx))
		}
	}
	if err := sw.xw.AddAttribute("t", "inlineStr"); err != nil {
		return err
	}
	if err := sw.xw.StartElement("is"); err != nil {
		return err
	}
	if err := sw.xw.StartElement("t"); err != nil {
		return err
	}
	if err := sw.xw.WriteText(s); err != nil {
		return err
	}
	if err := sw.xw.EndElement("t"); err != nil {
		return err
	}
	return sw.xw.EndElement("is")
}

// End closes the worksheet and flushes all remaining output.
func (sw *SheetWriter) End() error {
	if err := sw.closeRow(); err != nil {
		return err
	}
	if err := sw.xw.EndElement("sheetData"); err != nil {
		return err
	}
	if err := sw.xw.EndElement("worksheet"); err != nil {
		return err
	}
	return sw.xw.Finish()
}

// WriteSharedStringsPart emits the shared-strings part for the given pool,
// typically StringIntern.Strings() at the end of a write session.
func WriteSharedStringsPart(sink io.Writer, pool []string) error {
	xw := NewXMLWriter(sink, 0)
	if err := xw.WriteDeclaration(); err != nil {
		return err
	}
	if err := xw.StartElement("sst"); err != nil {
		return err
	}
	if err := xw.AddAttribute("xmlns", mainNS); err != nil {
		return err
	}
	count := strconv.Itoa(len(pool))
	if err := xw.AddAttribute("count", count); err != nil {
		return err
	}
	if err := xw.AddAttribute("uniqueCount", count); err != nil {
		return err
	}
	for _, s := range pool {
		if err := xw.StartElement("si"); err != nil {
			return err
		}
		if err := xw.StartElement("t"); err != nil {
			return err
		}
		if err := xw.WriteText(s); err != nil {
			return err
		}
		if err := xw.EndElement("t"); err != nil {
			return err
		}
		if err := xw.EndElement("si"); err != nil {
			return err
		}
	}
	if err := xw.EndElement("sst"); err != nil {
		return err
	}
	return xw.Finish()
}

// WriteWorkbookPart emits the workbook manifest listing the given sheets.
func WriteWorkbookPart(sink io.Writer, sheets []SheetDescriptor) error {
	xw := NewXMLWriter(sink, 0)
	if err := xw.WriteDeclaration(); err != nil {
		return err
	}
	if err := xw.StartElement("workbook"); err != nil {
		return err
	}
	if err := xw.AddAttribute("xmlns", mainNS); err != nil {
		return err
	}
	if err := xw.AddAttribute("xmlns:r", relNS); err != nil {
		return err
	}
	if err := xw.StartElement("sheets"); err != nil {
		return err
	}
	for _, d := range sheets {
		if err := xw.StartElement("sheet"); err != nil {
			return err
		}
		if err := xw.AddAttribute("name", d.Name); err != nil {
			return err
		}
		if err := xw.AddAttribute("sheetId", strconv.Itoa(d.SheetID)); err != nil {
			return err
		}
		if err := xw.AddAttribute("r:id", d.RelID); err != nil {
			return err
		}
		if err := xw.EndElement("sheet"); err != nil {
			return err
		}
	}
	if err := xw.EndElement("sheets"); err != nil {
		return err
	}
	if err := xw.EndElement("workbook"); err != nil {
		return err
	}
	return xw.Finish()
}

// WriteRelationshipsPart emits a relationships part.
func WriteRelationshipsPart(sink io.Writer, rels []Relationship) error {
	xw := NewXMLWriter(sink, 0)
	if err := xw.WriteDeclaration(); err != nil {
		return err
	}
	if err := xw.StartElement("Relationships"); err != nil {
		return err
	}
	if err := xw.AddAttribute("xmlns", pkgNS); err != nil {
		return err
	}
	for _, rel := range rels {
		if err := xw.StartElement("Relationship"); err != nil {
			return err
		}
		if err := xw.AddAttribute("Id", rel.ID); err != nil {
			return err
		}
		if err := xw.AddAttribute("Type", rel.Type); err != nil {
			return err
		}
		if err := xw.AddAttribute("Target", rel.Target); err != nil {
			return err
		}
		if err := xw.EndElement("Relationship"); err != nil {
			return err
		}
	}
	if err := xw.EndElement("Relationships"); err != nil {
		return err
	}
	return xw.Finish()
}

// WorksheetRelID returns the conventional relationship id for the n-th
// sheet (1-based).
func WorksheetRelID(n int) string {
	return fmt.Sprintf("rId%d", n)
}
