package helpers

import "strings"

// =============================================================================
// Grid Layout
// =============================================================================
// Rows and columns for N stream tiles of the multi-camera view.
// =============================================================================

// Layout names accepted by GridFor.
const (
	LayoutGrid  = "grid"
	LayoutStack = "stack"
	LayoutAuto  = "auto"
)

// GridFor returns (rows, cols) for n tiles under layout. grid uses a fixed
// column count, stack puts every tile in its own row and auto picks with
// GetSmartGrid. Unknown layouts behave like grid.
func GridFor(layout string, n, columns int) (rows, cols int) {
	if n < 1 {
		n = 1
	}
	switch strings.ToLower(strings.TrimSpace(layout)) {
	case LayoutStack:
		return n, 1
	case LayoutAuto:
		return GetSmartGrid(n)
	}
	if columns < 1 {
		columns = 2
	}
	if n < columns {
		// one short row should still fill the width
		return 1, n
	}
	return (n + columns - 1) / columns, columns
}

// GetSmartGrid returns sensible (rows, cols) for n tiles.
// Handles 1-9 tiles with fixed layouts, and 10+ with a formula
// capping at 4 columns.
func GetSmartGrid(n int) (rows, cols int) {
	switch {
	case n <= 1:
		return 1, 1
	case n == 2:
		return 1, 2
	case n == 3:
		return 1, 3
	case n == 4:
		return 2, 2
	case n <= 6:
		return 2, 3
	case n <= 9:
		return 3, 3
	default:
		// cols = min(4, floor(sqrt(n) * 1.5)), rows = ceil(n / cols)
		cols = int(float64(isqrt(n)) * 1.5)
		if cols > 4 {
			cols = 4
		}
		if cols < 1 {
			cols = 1
		}
		rows = (n + cols - 1) / cols
		return rows, cols
	}
}

// isqrt returns the integer square root of n.
func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
