package xlsx

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// CellType is the type marker carried by a worksheet cell. It determines
// how the cell's accumulated text is interpreted.
type CellType int

const (
	// CellTypeNumber is the default when a cell carries no "t" attribute.
	CellTypeNumber CellType = iota

	// CellTypeSharedString marks a cell whose value is an index into the
	// shared string table ("s").
	CellTypeSharedString

	// CellTypeBoolean marks a boolean cell ("b").
	CellTypeBoolean

	// CellTypeFormulaString marks a cached formula result string ("str").
	CellTypeFormulaString

	// CellTypeInlineString marks an inline string cell ("inlineStr").
	CellTypeInlineString

	// CellTypeError marks an error literal cell ("e").
	CellTypeError
)

func cellTypeFromMarker(t string) CellType {
	switch t {
	case "", "n":
		return CellTypeNumber
	case "s":
		return CellTypeSharedString
	case "b":
		return CellTypeBoolean
	case "str":
		return CellTypeFormulaString
	case "inlineStr":
		return CellTypeInlineString
	case "e":
		return CellTypeError
	default:
		return CellTypeNumber
	}
}

// CellRecord is one cell as seen on the wire: address text, raw value
// text, type tag and style index. Shared-string indices are not resolved
// here; that happens at consumption time, decoupling the parser from the
// table's lifetime.
type CellRecord struct {
	Ref   string
	Value string
	Type  CellType
	Style int
}

// RowRecord is one fully-closed row. Records are transient: the parser
// reuses nothing, but consumers are expected to process each batch before
// the callback returns.
type RowRecord struct {
	Index int // 1-based row number
	Cells []CellRecord
}

// parseState identifies where in the part's element structure the parser
// currently is.
type parseState int

const (
	stateNone parseState = iota
	stateWorkbook
	stateSheetData
	stateRow
	stateCell
	stateValue
	stateInlineString
	stateSharedString
	stateRelationships
	stateContentTypes
)

var parseStateNames = map[parseState]string{
	stateNone:          "None",
	stateWorkbook:      "Workbook",
	stateSheetData:     "SheetData",
	stateRow:           "Row",
	stateCell:          "Cell",
	stateValue:         "Value",
	stateInlineString:  "InlineString",
	stateSharedString:  "SharedString",
	stateRelationships: "Relationships",
	stateContentTypes:  "ContentTypes",
}

func (s parseState) String() string {
	if name, ok := parseStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// transition returns the state entered when element name opens while in
// state s. Elements that do not change the machine's position return s
// unchanged. The table is pure so it can be tested without any XML input.
func transition(s parseState, name string) parseState {
	switch s {
	case stateNone:
		switch name {
		case "workbook":
			return stateWorkbook
		case "sheetData":
			return stateSheetData
		case "sst":
			return stateSharedString
		case "Relationships":
			return stateRelationships
		case "Types":
			return stateContentTypes
		}
	case stateSheetData:
		if name == "row" {
			return stateRow
		}
	case stateRow:
		if name == "c" {
			return stateCell
		}
	case stateCell:
		switch name {
		case "v":
			return stateValue
		case "is":
			return stateInlineString
		}
	case stateSharedString:
		if name == "si" {
			return stateInlineString
		}
	case stateInlineString:
		if name == "t" {
			return stateValue
		}
	}
	return s
}

// ParseOptions tunes one parse run.
type ParseOptions struct {
	// BatchSize coalesces this many rows per callback invocation to
	// reduce call overhead. Zero or one delivers rows singly.
	BatchSize int

	// CharsetReader decodes parts whose XML declaration names a
	// non-UTF-8 encoding. Defaults to an x/text backed lookup.
	CharsetReader func(charset string, input io.Reader) (io.Reader, error)
}

func defaultCharsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(input), nil
}

// Parser is a SAX-style decoder turning one part's raw bytes into
// structural events, without building a document tree. Memory is bounded
// to roughly one row (or one batch) regardless of part size.
//
// A Parser is good for one Parse call. Register the callbacks relevant to
// the part being decoded; events with no registered callback are skipped.
type Parser struct {
	part string
	opts ParseOptions

	// onRows receives fully-closed rows, possibly several per call.
	onRows func([]RowRecord) error

	// onSheet receives each sheet element of a workbook manifest.
	onSheet func(name, relID string, sheetID int) error

	// onRelationship receives each relationship of a rels part.
	onRelationship func(rel Relationship) error

	// onOverride receives each content-type override of the manifest.
	onOverride func(partName, contentType string) error

	// onString receives each shared-string item in document order.
	onString func(s string) error

	state parseState
	stack []parseFrame

	row     RowRecord
	lastRow int
	cell    CellRecord
	text    strings.Builder
	batch   []RowRecord
}

// parseFrame remembers the state to return to when the element that caused
// a transition closes.
type parseFrame struct {
	name string
	ret  parseState
}

// NewParser creates a parser for the named part. The part name appears in
// every diagnostic the parser produces.
func NewParser(part string, opts ParseOptions) *Parser {
	return &Parser{part: part, opts: opts, state: stateNone}
}

// OnRows registers the row callback.
func (p *Parser) OnRows(fn func([]RowRecord) error) { p.onRows = fn }

// OnSheet registers the workbook sheet-list callback.
func (p *Parser) OnSheet(fn func(name, relID string, sheetID int) error) { p.onSheet = fn }

// OnRelationship registers the relationships callback.
func (p *Parser) OnRelationship(fn func(rel Relationship) error) { p.onRelationship = fn }

// OnOverride registers the content-type override callback.
func (p *Parser) OnOverride(fn func(partName, contentType string) error) { p.onOverride = fn }

// OnString registers the shared-string item callback.
func (p *Parser) OnString(fn func(s string) error) { p.onString = fn }

func attrValue(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Parse drives the state machine over one part. Malformed XML fails the
// parse with a ParseError carrying the part name and byte offset; a row is
// only delivered once fully closed, never partially.
func (p *Parser) Parse(r io.Reader) error {
	dec := xml.NewDecoder(r)
	if p.opts.CharsetReader != nil {
		dec.CharsetReader = p.opts.CharsetReader
	} else {
		dec.CharsetReader = defaultCharsetReader
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &ParseError{Part: p.part, Offset: dec.InputOffset(), Msg: "malformed XML: " + err.Error(), Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := p.startElement(dec, t); err != nil {
				return err
			}
		case xml.EndElement:
			if err := p.endElement(t); err != nil {
				return err
			}
		case xml.CharData:
			if p.state == stateValue {
				p.text.Write(t)
			}
		}
	}
	if len(p.stack) > 0 {
		return NewParseError(p.part, dec.InputOffset(), "unexpected end of part inside <%s>", p.stack[len(p.stack)-1].name)
	}
	return p.flushRows(true)
}

func (p *Parser) startElement(dec *xml.Decoder, se xml.StartElement) error {
	name := se.Name.Local
	if name == "rPh" && p.state == stateInlineString {
		// Phonetic runs carry their own t elements that must not leak
		// into the accumulated string.
		return dec.Skip()
	}
	next := transition(p.state, name)
	p.stack = append(p.stack, parseFrame{name: name, ret: p.state})
	prev := p.state
	p.state = next

	switch {
	case next == stateRow && prev == stateSheetData:
		index := p.lastRow + 1
		if r := attrValue(se, "r"); r != "" {
			n, err := strconv.Atoi(r)
			if err != nil || n < 1 {
				return NewParseError(p.part, dec.InputOffset(), "invalid row number %q", r)
			}
			index = n
		}
		p.row = RowRecord{Index: index}
	case next == stateCell && prev == stateRow:
		style := 0
		if s := attrValue(se, "s"); s != "" {
			style, _ = strconv.Atoi(s)
		}
		p.cell = CellRecord{
			Ref:   attrValue(se, "r"),
			Type:  cellTypeFromMarker(attrValue(se, "t")),
			Style: style,
		}
		p.text.Reset()
	case next == stateInlineString && (name == "si" || name == "is"):
		// A fresh string item restarts accumulation; rich-text runs
		// nested below keep appending.
		p.text.Reset()
	}

	// Leaf elements of the bootstrap parts are handled in place; they do
	// not shift the state.
	switch p.state {
	case stateWorkbook:
		if name == "sheet" && p.onSheet != nil {
			sheetID, err := strconv.Atoi(attrValue(se, "sheetId"))
			if err != nil {
				sheetID = 0
			}
			if err := p.onSheet(attrValue(se, "name"), attrValue(se, "id"), sheetID); err != nil {
				return err
			}
		}
	case stateRelationships:
		if name == "Relationship" && p.onRelationship != nil {
			rel := Relationship{
				ID:     attrValue(se, "Id"),
				Type:   attrValue(se, "Type"),
				Target: attrValue(se, "Target"),
			}
			if err := p.onRelationship(rel); err != nil {
				return err
			}
		}
	case stateContentTypes:
		if name == "Override" && p.onOverride != nil {
			if err := p.onOverride(attrValue(se, "PartName"), attrValue(se, "ContentType")); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Parser) endElement(ee xml.EndElement) error {
	if len(p.stack) == 0 {
		return NewParseError(p.part, 0, "unbalanced end element </%s>", ee.Name.Local)
	}
	frame := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	leaving := p.state
	p.state = frame.ret

	switch frame.name {
	case "v":
		if leaving == stateValue && p.state == stateCell {
			p.cell.Value = p.text.String()
			p.text.Reset()
		}
	case "is":
		if p.state == stateCell {
			p.cell.Value = p.text.String()
			p.text.Reset()
		}
	case "c":
		if p.state == stateRow {
			p.row.Cells = append(p.row.Cells, p.cell)
			p.cell = CellRecord{}
		}
	case "row":
		if p.state == stateSheetData {
			p.lastRow = p.row.Index
			p.batch = append(p.batch, p.row)
			p.row = RowRecord{}
			if err := p.flushRows(false); err != nil {
				return err
			}
		}
	case "si":
		if p.state == stateSharedString && p.onString != nil {
			s := p.text.String()
			p.text.Reset()
			if err := p.onString(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// flushRows hands accumulated rows to the callback. With force set, any
// remainder smaller than a batch is delivered too.
func (p *Parser) flushRows(force bool) error {
	if p.onRows == nil || len(p.batch) == 0 {
		p.batch = p.batch[:0]
		return nil
	}
	batchSize := p.opts.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	if !force && len(p.batch) < batchSize {
		return nil
	}
	rows := p.batch
	p.batch = nil
	return p.onRows(rows)
}
