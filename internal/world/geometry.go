package world

import "math"

// TileSize is the side length of a single tile in world units.
const TileSize = 32.0

// Vec2 is a position or displacement in world (pixel) space.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v multiplied by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Len reports the Euclidean length of v.
func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// IsZero reports whether both components are zero.
func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Finite reports whether neither component is NaN or infinite.
func (v Vec2) Finite() bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vec2) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// GridCell addresses a single tile. Cells are comparable and usable as map keys.
type GridCell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Less orders cells row-major (Y first, then X).
func (c GridCell) Less(o GridCell) bool {
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.X < o.X
}

// CellToWorld returns the world position of the top-left corner of cell.
func CellToWorld(cell GridCell) Vec2 {
	return Vec2{X: float64(cell.X) * TileSize, Y: float64(cell.Y) * TileSize}
}

// WorldToCell returns the cell containing pos. It floors, never rounds, so a
// position exactly on a tile corner maps to that tile.
func WorldToCell(pos Vec2) GridCell {
	return GridCell{
		X: int(math.Floor(pos.X / TileSize)),
		Y: int(math.Floor(pos.Y / TileSize)),
	}
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectAt builds a rectangle of the given size with its top-left at pos.
func RectAt(pos Vec2, width, height float64) Rect {
	return Rect{X: pos.X, Y: pos.Y, Width: width, Height: height}
}

// CellRect returns the world-space rectangle covered by width×height cells
// starting at origin.
func CellRect(origin GridCell, width, height int) Rect {
	return RectAt(CellToWorld(origin), float64(width)*TileSize, float64(height)*TileSize)
}

func (r Rect) Left() float64   { return r.X }
func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Top() float64    { return r.Y }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// TopLeft returns the anchor corner.
func (r Rect) TopLeft() Vec2 {
	return Vec2{X: r.X, Y: r.Y}
}

// Center returns the rectangle's midpoint.
func (r Rect) Center() Vec2 {
	return Vec2{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Translate returns r shifted by d.
func (r Rect) Translate(d Vec2) Rect {
	r.X += d.X
	r.Y += d.Y
	return r
}

// Expand grows r by dw and dh while keeping its centre fixed.
func (r Rect) Expand(dw, dh float64) Rect {
	return Rect{X: r.X - dw/2, Y: r.Y - dh/2, Width: r.Width + dw, Height: r.Height + dh}
}

// Overlaps reports strict AABB intersection; rectangles that only share an
// edge do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.Width &&
		r.X+r.Width > o.X &&
		r.Y < o.Y+o.Height &&
		r.Y+r.Height > o.Y
}
