package world

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrOutOfBounds is returned when a cell lies outside the map.
	ErrOutOfBounds = errors.New("world: cell out of bounds")
	// ErrInvalidPosition is returned for positions that are NaN or infinite.
	ErrInvalidPosition = errors.New("world: invalid position")
	// ErrInvalidDimensions is returned when a map is built with a non-positive
	// size or a tile slice that does not match it.
	ErrInvalidDimensions = errors.New("world: invalid map dimensions")
)

// Tile is the static terrain kind of a cell.
type Tile uint8

const (
	// TileAir is open ground agents can walk on.
	TileAir Tile = iota
	// TileWall is solid terrain.
	TileWall
)

func (t Tile) String() string {
	switch t {
	case TileAir:
		return "air"
	case TileWall:
		return "wall"
	default:
		return fmt.Sprintf("tile(%d)", uint8(t))
	}
}

// TileMap is the static terrain grid plus a mutable set of cells blocked by
// placed objects (ore patches, buildings). Tiles never change after
// construction.
type TileMap struct {
	width   int
	height  int
	tiles   []Tile
	blocked map[GridCell]struct{}
}

// NewTileMap validates and copies tiles (row-major, width*height entries).
func NewTileMap(width, height int, tiles []Tile) (*TileMap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if len(tiles) != width*height {
		return nil, fmt.Errorf("%w: %d tiles for %dx%d", ErrInvalidDimensions, len(tiles), width, height)
	}
	copied := make([]Tile, len(tiles))
	copy(copied, tiles)
	return &TileMap{
		width:   width,
		height:  height,
		tiles:   copied,
		blocked: make(map[GridCell]struct{}),
	}, nil
}

// Width returns the number of columns.
func (m *TileMap) Width() int {
	if m == nil {
		return 0
	}
	return m.width
}

// Height returns the number of rows.
func (m *TileMap) Height() int {
	if m == nil {
		return 0
	}
	return m.height
}

// InBounds reports whether cell addresses a tile of the map.
func (m *TileMap) InBounds(cell GridCell) bool {
	return m != nil && cell.X >= 0 && cell.Y >= 0 && cell.X < m.width && cell.Y < m.height
}

func (m *TileMap) index(cell GridCell) int {
	return cell.Y*m.width + cell.X
}

// TileAt returns the terrain at cell.
func (m *TileMap) TileAt(cell GridCell) (Tile, error) {
	if !m.InBounds(cell) {
		return TileAir, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, cell.X, cell.Y)
	}
	return m.tiles[m.index(cell)], nil
}

// IsBlocked reports whether cell is occupied by a placed object.
func (m *TileMap) IsBlocked(cell GridCell) bool {
	if m == nil {
		return false
	}
	_, ok := m.blocked[cell]
	return ok
}

// Walkable reports whether an agent may stand in cell. Out-of-bounds cells
// are never walkable.
func (m *TileMap) Walkable(cell GridCell) bool {
	if !m.InBounds(cell) {
		return false
	}
	if m.tiles[m.index(cell)] != TileAir {
		return false
	}
	return !m.IsBlocked(cell)
}

// Collidable reports whether an in-bounds cell stops agent footprints: walls
// and blocked cells both do.
func (m *TileMap) Collidable(cell GridCell) bool {
	if !m.InBounds(cell) {
		return false
	}
	return m.tiles[m.index(cell)] == TileWall || m.IsBlocked(cell)
}

// MarkBlocked adds cells to the blocked set. If any cell is out of bounds
// nothing is marked.
func (m *TileMap) MarkBlocked(cells ...GridCell) error {
	if m == nil {
		return ErrOutOfBounds
	}
	for _, cell := range cells {
		if !m.InBounds(cell) {
			return fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, cell.X, cell.Y)
		}
	}
	for _, cell := range cells {
		m.blocked[cell] = struct{}{}
	}
	return nil
}

// UnmarkBlocked removes cells from the blocked set. Cells that are not
// blocked are ignored.
func (m *TileMap) UnmarkBlocked(cells ...GridCell) {
	if m == nil {
		return
	}
	for _, cell := range cells {
		delete(m.blocked, cell)
	}
}

// BlockedCells returns the blocked set in row-major order.
func (m *TileMap) BlockedCells() []GridCell {
	if m == nil || len(m.blocked) == 0 {
		return nil
	}
	cells := make([]GridCell, 0, len(m.blocked))
	for cell := range m.blocked {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].Less(cells[j]) })
	return cells
}

// Locate converts a world position to an in-bounds cell.
func (m *TileMap) Locate(pos Vec2) (GridCell, error) {
	if !pos.Finite() {
		return GridCell{}, ErrInvalidPosition
	}
	cell := WorldToCell(pos)
	if !m.InBounds(cell) {
		return cell, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, cell.X, cell.Y)
	}
	return cell, nil
}

// Clone returns an independent copy including the blocked set.
func (m *TileMap) Clone() *TileMap {
	if m == nil {
		return nil
	}
	clone, _ := NewTileMap(m.width, m.height, m.tiles)
	for cell := range m.blocked {
		clone.blocked[cell] = struct{}{}
	}
	return clone
}
