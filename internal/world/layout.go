package world

import (
	"fmt"
	"strings"
)

const (
	LayoutWall = '#'
	LayoutAir  = '.'
)

// LayoutError describes why an ASCII layout was rejected. Line and Column are
// 1-based; Column is zero for row-level problems.
type LayoutError struct {
	Line   int
	Column int
	Char   rune
	Reason string
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Column > 0 {
		return fmt.Sprintf("layout line %d column %d: %s %q", e.Line, e.Column, e.Reason, e.Char)
	}
	if e.Line > 0 {
		return fmt.Sprintf("layout line %d: %s", e.Line, e.Reason)
	}
	return "layout: " + e.Reason
}

// ParseLayout builds a TileMap from rows of '#' (wall) and '.' (air). All rows
// must share the same length. A single trailing newline is accepted and
// Windows line endings are tolerated.
func ParseLayout(layout string) (*TileMap, error) {
	text := strings.ReplaceAll(layout, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil, &LayoutError{Reason: "empty layout"}
	}

	lines := strings.Split(text, "\n")
	width := len([]rune(lines[0]))
	if width == 0 {
		return nil, &LayoutError{Line: 1, Reason: "empty row"}
	}

	tiles := make([]Tile, 0, width*len(lines))
	for y, line := range lines {
		row := []rune(line)
		if len(row) != width {
			return nil, &LayoutError{
				Line:   y + 1,
				Reason: fmt.Sprintf("row has %d columns, expected %d", len(row), width),
			}
		}
		for x, ch := range row {
			switch ch {
			case LayoutWall:
				tiles = append(tiles, TileWall)
			case LayoutAir:
				tiles = append(tiles, TileAir)
			default:
				return nil, &LayoutError{Line: y + 1, Column: x + 1, Char: ch, Reason: "unexpected character"}
			}
		}
	}

	return NewTileMap(width, len(lines), tiles)
}

// MustParseLayout is ParseLayout for fixed layouts known to be valid.
func MustParseLayout(layout string) *TileMap {
	m, err := ParseLayout(layout)
	if err != nil {
		panic(err)
	}
	return m
}

// Layout renders the terrain back to ASCII. Blocked cells are rendered as air
// because they are not part of the static terrain.
func (m *TileMap) Layout() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	b.Grow((m.width + 1) * m.height)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if m.tiles[y*m.width+x] == TileWall {
				b.WriteRune(LayoutWall)
			} else {
				b.WriteRune(LayoutAir)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// BorderedLayout returns a width×height layout of air enclosed by a one-tile
// wall border.
func BorderedLayout(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	var b strings.Builder
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x == 0 || y == 0 || x == width-1 || y == height-1 {
				b.WriteRune(LayoutWall)
			} else {
				b.WriteRune(LayoutAir)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
