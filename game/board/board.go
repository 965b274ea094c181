// Package board implements the pure rules of the 3x3 grid game: symbol
// placement, win detection over the eight fixed lines, and draw detection.
// It holds no session or player state and is safe to use from tests directly.
package board

import "fmt"

// Symbol is a mark on the board. The empty string means the cell is free.
type Symbol string

const (
	SymbolNone Symbol = ""
	SymbolX    Symbol = "X"
	SymbolO    Symbol = "O"
)

// Other returns the opposing symbol. Calling it on SymbolNone returns SymbolNone.
func (s Symbol) Other() Symbol {
	switch s {
	case SymbolX:
		return SymbolO
	case SymbolO:
		return SymbolX
	}
	return SymbolNone
}

// Size is the number of cells on the board, indexed 0-8 row-major.
const Size = 9

// winLines are the eight triples that decide a game: three rows, three
// columns, two diagonals.
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Board is the 9-cell grid. The zero value is an empty board.
type Board [Size]Symbol

// ErrOutOfRange is returned for positions outside [0, 8].
var ErrOutOfRange = fmt.Errorf("position out of range [0, %d]", Size-1)

// ErrOccupied is returned when the target cell already holds a symbol.
var ErrOccupied = fmt.Errorf("cell already taken")

// Apply writes symbol at position after validating range and vacancy.
// The board is unchanged on error.
func (b *Board) Apply(position int, symbol Symbol) error {
	if position < 0 || position >= Size {
		return ErrOutOfRange
	}
	if b[position] != SymbolNone {
		return ErrOccupied
	}
	b[position] = symbol
	return nil
}

// MoveCount returns the number of occupied cells.
func (b Board) MoveCount() int {
	n := 0
	for _, cell := range b {
		if cell != SymbolNone {
			n++
		}
	}
	return n
}

// Full reports whether every cell is occupied.
func (b Board) Full() bool {
	return b.MoveCount() == Size
}

// CheckWin reports whether symbol holds a complete line, and if so which one.
func (b Board) CheckWin(symbol Symbol) (won bool, line []int) {
	for _, l := range winLines {
		if b[l[0]] == symbol && b[l[1]] == symbol && b[l[2]] == symbol {
			return true, []int{l[0], l[1], l[2]}
		}
	}
	return false, nil
}

// Winner scans both symbols and returns the winning one with its line, or
// SymbolNone when no line is complete.
func (b Board) Winner() (Symbol, []int) {
	for _, s := range []Symbol{SymbolX, SymbolO} {
		if won, line := b.CheckWin(s); won {
			return s, line
		}
	}
	return SymbolNone, nil
}

// Cells returns the board as a slice of strings for JSON payloads, with empty
// cells rendered as "".
func (b Board) Cells() []string {
	cells := make([]string, Size)
	for i, cell := range b {
		cells[i] = string(cell)
	}
	return cells
}
