package xlsx

// Cell content types, as surfaced on a materialized Sheet.
const (
	CTypeEmpty   = 0
	CTypeText    = 1
	CTypeNumber  = 2
	CTypeBoolean = 3
	CTypeError   = 4
)

// Cell is a cell in a materialized sheet.
type Cell struct {
	// CType is one of CTypeEmpty, CTypeText, CTypeNumber, CTypeBoolean,
	// CTypeError.
	CType int

	// Value holds a string for CTypeText and CTypeError, a float64 for
	// CTypeNumber, a bool for CTypeBoolean, and nil for CTypeEmpty.
	Value interface{}

	// XFIndex is the style index recorded for this cell.
	XFIndex int
}

var emptyCell = Cell{CType: CTypeEmpty}

// EmptyCell returns an empty cell.
func EmptyCell() Cell {
	return emptyCell
}

// Sheet is one worksheet's materialized rectangular grid. Rows are
// contiguous from 0 to the highest row seen in the part; rows absent from
// the part materialize as empty placeholders, so a row's grid index always
// equals its position.
//
// In the cell access functions, rowx is a row index and colx a column
// index, both counting from zero. A Sheet is never mutated after
// materialization; concurrent read-only access is safe.
//
// You don't instantiate this type yourself. You access Sheet objects via
// the Workbook that was returned when you called OpenWorkbook.
type Sheet struct {
	// Name is the name of the sheet.
	Name string

	// NRows is the number of rows in the sheet.
	NRows int

	// NCols is the nominal number of columns: one more than the highest
	// column index found in any row.
	NCols int

	rows [][]Cell
}

// Cell returns the cell at the given position. Positions inside the
// sheet's dimensions but absent from the stored grid read as empty.
func (s *Sheet) Cell(rowx, colx int) Cell {
	if rowx < 0 || rowx >= s.NRows || colx < 0 || colx >= s.NCols {
		return emptyCell
	}
	row := s.rows[rowx]
	if colx >= len(row) {
		return emptyCell
	}
	return row[colx]
}

// CellValue returns the value of the cell at the given position.
func (s *Sheet) CellValue(rowx, colx int) interface{} {
	return s.Cell(rowx, colx).Value
}

// CellType returns the type of the cell at the given position.
func (s *Sheet) CellType(rowx, colx int) int {
	return s.Cell(rowx, colx).CType
}

// Row returns the stored cells of one row. The slice may be shorter than
// NCols; trailing cells are empty. Callers must not modify it.
func (s *Sheet) Row(rowx int) []Cell {
	if rowx < 0 || rowx >= s.NRows {
		return nil
	}
	return s.rows[rowx]
}

// RowLen returns the number of stored cells in a row.
func (s *Sheet) RowLen(rowx int) int {
	if rowx < 0 || rowx >= s.NRows {
		return 0
	}
	return len(s.rows[rowx])
}

// Range returns the rectangular block [r1,r2] x [c1,c2] (inclusive,
// 0-based) as freshly allocated rows, with positions outside the stored
// grid filled with empty cells.
func (s *Sheet) Range(r1, c1, r2, c2 int) [][]Cell {
	if r2 < r1 || c2 < c1 {
		return nil
	}
	out := make([][]Cell, 0, r2-r1+1)
	for r := r1; r <= r2; r++ {
		row := make([]Cell, 0, c2-c1+1)
		for c := c1; c <= c2; c++ {
			row = append(row, s.Cell(r, c))
		}
		out = append(out, row)
	}
	return out
}
