package xlsx

import (
	"fmt"
	"strconv"
)

// CellAddress is a 1-based (row, column) position in a worksheet. It is a
// cheap value type; the zero value is not a valid address.
type CellAddress struct {
	Row int
	Col int
}

// Valid reports whether both coordinates are positive.
func (a CellAddress) Valid() bool {
	return a.Row >= 1 && a.Col >= 1
}

// String returns the "A1"-style text for the address.
func (a CellAddress) String() string {
	return FormatAddress(a)
}

// ColumnName returns the column letters for a 1-based column index.
// Example: ColumnName(1) returns "A", ColumnName(26) returns "Z",
// ColumnName(27) returns "AA".
func ColumnName(col int) string {
	if col < 1 {
		return ""
	}
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	name := ""
	colx := col - 1
	for {
		quot := colx / 26
		rem := colx % 26
		name = string(alphabet[rem]) + name
		if quot == 0 {
			break
		}
		colx = quot - 1
	}
	return name
}

// ColumnIndex converts column letters back to a 1-based column index.
func ColumnIndex(name string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("xlsx: empty column name")
	}
	col := 0
	for _, c := range name {
		if c < 'A' || c > 'Z' {
			return 0, fmt.Errorf("xlsx: invalid column name %q", name)
		}
		if col > (1<<31)/26 {
			return 0, fmt.Errorf("xlsx: column name %q out of range", name)
		}
		col = col*26 + int(c-'A'+1)
	}
	return col, nil
}

// FormatAddress renders the address as "A1"-style text. Formatting then
// parsing yields the original address for every valid position.
func FormatAddress(a CellAddress) string {
	return ColumnName(a.Col) + strconv.Itoa(a.Row)
}

// ParseAddress parses "A1"-style text into a CellAddress. The text must be
// one or more column letters followed by a positive decimal row number.
func ParseAddress(s string) (CellAddress, error) {
	split := 0
	for split < len(s) && s[split] >= 'A' && s[split] <= 'Z' {
		split++
	}
	if split == 0 || split == len(s) {
		return CellAddress{}, fmt.Errorf("xlsx: invalid cell reference %q", s)
	}
	col, err := ColumnIndex(s[:split])
	if err != nil {
		return CellAddress{}, err
	}
	rowText := s[split:]
	if rowText[0] == '0' || rowText[0] == '+' || rowText[0] == '-' {
		return CellAddress{}, fmt.Errorf("xlsx: invalid cell reference %q", s)
	}
	row, err := strconv.Atoi(rowText)
	if err != nil || row < 1 {
		return CellAddress{}, fmt.Errorf("xlsx: invalid cell reference %q", s)
	}
	return CellAddress{Row: row, Col: col}, nil
}
