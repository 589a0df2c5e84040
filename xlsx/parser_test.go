package xlsx

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The transition table is pure and testable without any XML input.
func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from     parseState
		element  string
		expected parseState
	}{
		{stateNone, "workbook", stateWorkbook},
		{stateNone, "sheetData", stateSheetData},
		{stateNone, "sst", stateSharedString},
		{stateNone, "Relationships", stateRelationships},
		{stateNone, "Types", stateContentTypes},
		{stateSheetData, "row", stateRow},
		{stateRow, "c", stateCell},
		{stateCell, "v", stateValue},
		{stateCell, "is", stateInlineString},
		{stateSharedString, "si", stateInlineString},
		{stateInlineString, "t", stateValue},
		// Elements with no transition leave the state alone.
		{stateNone, "worksheet", stateNone},
		{stateWorkbook, "sheets", stateWorkbook},
		{stateRow, "v", stateRow},
		{stateCell, "f", stateCell},
	}
	for _, test := range tests {
		got := transition(test.from, test.element)
		if got != test.expected {
			t.Errorf("transition(%v, %q) = %v, expected %v", test.from, test.element, got, test.expected)
		}
	}
}

func TestParserRows(t *testing.T) {
	const part = `<worksheet><sheetData>
<row r="1">
  <c r="A1" t="s"><v>3</v></c>
  <c r="C1" s="2"><v>1.5</v></c>
</row>
<row r="2">
  <c r="A2" t="b"><v>1</v></c>
  <c r="B2" t="inlineStr"><is><t>direct</t></is></c>
  <c r="C2" t="str"><v>cached</v></c>
  <c r="D2" t="e"><v>#DIV/0!</v></c>
</row>
</sheetData></worksheet>`

	var rows []RowRecord
	p := NewParser("xl/worksheets/sheet1.xml", ParseOptions{})
	p.OnRows(func(batch []RowRecord) error {
		rows = append(rows, batch...)
		return nil
	})
	require.NoError(t, p.Parse(strings.NewReader(part)))

	require.Len(t, rows, 2)
	require.Len(t, rows[0].Cells, 2)
	assert.Equal(t, 1, rows[0].Index)
	assert.Equal(t, CellRecord{Ref: "A1", Value: "3", Type: CellTypeSharedString}, rows[0].Cells[0])
	assert.Equal(t, CellRecord{Ref: "C1", Value: "1.5", Type: CellTypeNumber, Style: 2}, rows[0].Cells[1])

	require.Len(t, rows[1].Cells, 4)
	assert.Equal(t, CellTypeBoolean, rows[1].Cells[0].Type)
	assert.Equal(t, CellRecord{Ref: "B2", Value: "direct", Type: CellTypeInlineString}, rows[1].Cells[1])
	assert.Equal(t, CellRecord{Ref: "C2", Value: "cached", Type: CellTypeFormulaString}, rows[1].Cells[2])
	assert.Equal(t, CellRecord{Ref: "D2", Value: "#DIV/0!", Type: CellTypeError}, rows[1].Cells[3])
}

func TestParserInlineStringRuns(t *testing.T) {
	const part = `<worksheet><sheetData>
<row r="1"><c r="A1" t="inlineStr"><is><r><t>Hello </t></r><r><t>World</t></r></is></c></row>
</sheetData></worksheet>`

	var rows []RowRecord
	p := NewParser("sheet", ParseOptions{})
	p.OnRows(func(batch []RowRecord) error {
		rows = append(rows, batch...)
		return nil
	})
	require.NoError(t, p.Parse(strings.NewReader(part)))
	require.Len(t, rows, 1)
	assert.Equal(t, "Hello World", rows[0].Cells[0].Value)
}

func TestParserRowNumberDefaults(t *testing.T) {
	// Rows without an r attribute continue from the previous row.
	const part = `<worksheet><sheetData>
<row r="4"><c r="A4"><v>1</v></c></row>
<row><c><v>2</v></c></row>
</sheetData></worksheet>`

	var rows []RowRecord
	p := NewParser("sheet", ParseOptions{})
	p.OnRows(func(batch []RowRecord) error {
		rows = append(rows, batch...)
		return nil
	})
	require.NoError(t, p.Parse(strings.NewReader(part)))
	require.Len(t, rows, 2)
	assert.Equal(t, 4, rows[0].Index)
	assert.Equal(t, 5, rows[1].Index)
}

func TestParserBatching(t *testing.T) {
	var markup strings.Builder
	markup.WriteString("<worksheet><sheetData>")
	for i := 1; i <= 7; i++ {
		markup.WriteString(`<row r="` + strconv.Itoa(i) + `"><c><v>1</v></c></row>`)
	}
	markup.WriteString("</sheetData></worksheet>")

	var sizes []int
	p := NewParser("sheet", ParseOptions{BatchSize: 3})
	p.OnRows(func(batch []RowRecord) error {
		sizes = append(sizes, len(batch))
		return nil
	})
	require.NoError(t, p.Parse(strings.NewReader(markup.String())))

	// Two full batches plus the forced final remainder.
	assert.Equal(t, []int{3, 3, 1}, sizes)
}

func TestParserMalformedXML(t *testing.T) {
	const part = `<worksheet><sheetData><row r="1"><c r="A1"><v>1</v></row>`

	var rows []RowRecord
	p := NewParser("xl/worksheets/sheet1.xml", ParseOptions{})
	p.OnRows(func(batch []RowRecord) error {
		rows = append(rows, batch...)
		return nil
	})
	err := p.Parse(strings.NewReader(part))
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "xl/worksheets/sheet1.xml", parseErr.Part)
	assert.Greater(t, parseErr.Offset, int64(0))

	// The failing row was never fully closed, so it was never emitted.
	assert.Empty(t, rows)
}

func TestParserTruncatedPart(t *testing.T) {
	const part = `<worksheet><sheetData><row r="1">`
	p := NewParser("sheet", ParseOptions{})
	err := p.Parse(strings.NewReader(part))
	require.Error(t, err)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestParserInvalidRowNumber(t *testing.T) {
	const part = `<worksheet><sheetData><row r="zero"><c/></row></sheetData></worksheet>`
	p := NewParser("sheet", ParseOptions{})
	err := p.Parse(strings.NewReader(part))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid row number")
}

func TestParserWorkbookEvents(t *testing.T) {
	const part = `<workbook><sheets>
<sheet name="First" sheetId="1" r:id="rId1"/>
<sheet name="Second" sheetId="5" r:id="rId2"/>
</sheets></workbook>`

	type sheetEvent struct {
		name, relID string
		sheetID     int
	}
	var events []sheetEvent
	p := NewParser("xl/workbook.xml", ParseOptions{})
	p.OnSheet(func(name, relID string, sheetID int) error {
		events = append(events, sheetEvent{name, relID, sheetID})
		return nil
	})
	require.NoError(t, p.Parse(strings.NewReader(part)))
	assert.Equal(t, []sheetEvent{{"First", "rId1", 1}, {"Second", "rId2", 5}}, events)
}

func TestParserRelationshipEvents(t *testing.T) {
	const part = `<Relationships>
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
<Relationship Id="rId2" Type="other" Target="elsewhere.xml"/>
</Relationships>`

	var rels []Relationship
	p := NewParser("xl/_rels/workbook.xml.rels", ParseOptions{})
	p.OnRelationship(func(rel Relationship) error {
		rels = append(rels, rel)
		return nil
	})
	require.NoError(t, p.Parse(strings.NewReader(part)))
	require.Len(t, rels, 2)
	assert.Equal(t, "rId1", rels[0].ID)
	assert.Equal(t, "worksheets/sheet1.xml", rels[0].Target)
}

func TestParserOverrideEvents(t *testing.T) {
	const part = `<Types>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>
</Types>`

	overrides := map[string]string{}
	p := NewParser("[Content_Types].xml", ParseOptions{})
	p.OnOverride(func(partName, contentType string) error {
		overrides[partName] = contentType
		return nil
	})
	require.NoError(t, p.Parse(strings.NewReader(part)))
	assert.Len(t, overrides, 1)
	assert.Contains(t, overrides["/xl/workbook.xml"], "sheet.main+xml")
}

func TestParserLegacyEncoding(t *testing.T) {
	// A part declaring a non-UTF-8 encoding decodes through the charset
	// reader before tokenizing; 0xE9 is windows-1252 for é.
	part := `<?xml version="1.0" encoding="windows-1252"?>` +
		`<worksheet><sheetData><row r="1"><c r="A1" t="inlineStr"><is><t>caf` + "\xe9" +
		`</t></is></c></row></sheetData></worksheet>`

	var rows []RowRecord
	p := NewParser("xl/worksheets/sheet1.xml", ParseOptions{})
	p.OnRows(func(batch []RowRecord) error {
		rows = append(rows, batch...)
		return nil
	})
	require.NoError(t, p.Parse(strings.NewReader(part)))
	require.Len(t, rows, 1)
	require.Len(t, rows[0].Cells, 1)
	assert.Equal(t, "café", rows[0].Cells[0].Value)
}

func TestParserUnknownEncoding(t *testing.T) {
	part := `<?xml version="1.0" encoding="no-such-charset"?><worksheet/>`
	p := NewParser("xl/worksheets/sheet1.xml", ParseOptions{})
	err := p.Parse(strings.NewReader(part))
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "xl/worksheets/sheet1.xml", parseErr.Part)
}
