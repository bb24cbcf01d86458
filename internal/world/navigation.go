package world

import (
	"container/heap"
	"errors"
	"math"
)

// ErrInvalidSpeed is returned when a travel time is requested for a
// non-positive or non-finite speed.
var ErrInvalidSpeed = errors.New("world: speed must be positive")

type navNeighbor struct {
	dx       int
	dy       int
	diagonal bool
}

var navNeighborOffsets = [...]navNeighbor{
	{dx: 0, dy: -1},
	{dx: 1, dy: 0},
	{dx: 0, dy: 1},
	{dx: -1, dy: 0},
	{dx: 1, dy: -1, diagonal: true},
	{dx: 1, dy: 1, diagonal: true},
	{dx: -1, dy: 1, diagonal: true},
	{dx: -1, dy: -1, diagonal: true},
}

// Heuristic estimates the remaining step count between two cells.
type Heuristic func(a, b GridCell) int

// ManhattanDistance is |dx| + |dy|.
func ManhattanDistance(a, b GridCell) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}

// ChebyshevDistance is max(|dx|, |dy|), the exact step count on an open grid
// with unit-cost diagonals.
func ChebyshevDistance(a, b GridCell) int {
	dx := absInt(a.X - b.X)
	dy := absInt(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// PathFinder runs A* over a TileMap with 8-directional unit-cost moves.
// Diagonal moves require both flanking orthogonal cells to be walkable.
//
// The zero value searches with the Manhattan heuristic and no expansion
// budget. Manhattan overestimates diagonal travel, so results are not always
// shortest; use ChebyshevDistance when optimal step counts matter.
type PathFinder struct {
	Heuristic     Heuristic
	MaxExpansions int
}

// SearchResult reports the outcome of a single search.
type SearchResult struct {
	// Cells is the route from start to goal inclusive.
	Cells []GridCell
	// Path holds the top-left world position of every cell in Cells; the
	// start cell is waypoint 0.
	Path      []Vec2
	Found     bool
	Expanded  int
	Truncated bool
}

// Steps returns the number of moves in the path.
func (r SearchResult) Steps() int {
	if len(r.Cells) == 0 {
		return 0
	}
	return len(r.Cells) - 1
}

type pathNode struct {
	cell     GridCell
	g        int
	priority uint32
	seq      uint64
	index    int
}

// pathQueue is a max-heap on priority; equal priorities pop in insertion order.
type pathQueue []*pathNode

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority > pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	item := x.(*pathNode)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

func pathPriority(g, h int) uint32 {
	f := g + h
	if f < 0 {
		f = 0
	}
	if uint64(f) > math.MaxUint32 {
		return 0
	}
	return math.MaxUint32 - uint32(f)
}

func canTraverse(m *TileMap, from GridCell, delta navNeighbor) bool {
	to := GridCell{X: from.X + delta.dx, Y: from.Y + delta.dy}
	if !m.Walkable(to) {
		return false
	}
	if !delta.diagonal {
		return true
	}
	return m.Walkable(GridCell{X: to.X, Y: from.Y}) && m.Walkable(GridCell{X: from.X, Y: to.Y})
}

// Find returns the world-space path from start to goal and whether one exists.
func (f PathFinder) Find(m *TileMap, start, goal GridCell) ([]Vec2, bool) {
	result := f.Search(m, start, goal)
	return result.Path, result.Found
}

// Search runs A* and returns the full result including search statistics.
// Out-of-bounds endpoints and unwalkable goals yield Found == false. The
// start cell itself is not required to be walkable.
func (f PathFinder) Search(m *TileMap, start, goal GridCell) SearchResult {
	if !m.InBounds(start) || !m.InBounds(goal) {
		return SearchResult{}
	}
	if start == goal {
		return SearchResult{
			Cells: []GridCell{start},
			Path:  []Vec2{CellToWorld(start)},
			Found: true,
		}
	}
	if !m.Walkable(goal) {
		return SearchResult{}
	}

	h := f.Heuristic
	if h == nil {
		h = ManhattanDistance
	}

	size := m.width * m.height
	costs := make([]int, size)
	for i := range costs {
		costs[i] = -1
	}
	parents := make([]int, size)
	startIdx := m.index(start)
	goalIdx := m.index(goal)
	costs[startIdx] = 0
	parents[startIdx] = -1

	var seq uint64
	open := &pathQueue{}
	heap.Init(open)
	heap.Push(open, &pathNode{cell: start, g: 0, priority: pathPriority(0, h(start, goal)), seq: seq})

	result := SearchResult{}
	for open.Len() > 0 {
		current := heap.Pop(open).(*pathNode)
		currIdx := m.index(current.cell)
		if current.g > costs[currIdx] {
			continue
		}
		if currIdx == goalIdx {
			result.Cells = reconstructCells(m, parents, goalIdx)
			result.Path = cellsToWorld(result.Cells)
			result.Found = true
			return result
		}
		if f.MaxExpansions > 0 && result.Expanded >= f.MaxExpansions {
			result.Truncated = true
			return result
		}
		result.Expanded++

		for _, delta := range navNeighborOffsets {
			if !canTraverse(m, current.cell, delta) {
				continue
			}
			next := GridCell{X: current.cell.X + delta.dx, Y: current.cell.Y + delta.dy}
			nextIdx := m.index(next)
			tentative := current.g + 1
			if prev := costs[nextIdx]; prev >= 0 && tentative >= prev {
				continue
			}
			costs[nextIdx] = tentative
			parents[nextIdx] = currIdx
			seq++
			heap.Push(open, &pathNode{
				cell:     next,
				g:        tentative,
				priority: pathPriority(tentative, h(next, goal)),
				seq:      seq,
			})
		}
	}
	return result
}

func reconstructCells(m *TileMap, parents []int, end int) []GridCell {
	cells := make([]GridCell, 0)
	for idx := end; idx >= 0; idx = parents[idx] {
		cells = append(cells, GridCell{X: idx % m.width, Y: idx / m.width})
	}
	for i := 0; i < len(cells)/2; i++ {
		j := len(cells) - 1 - i
		cells[i], cells[j] = cells[j], cells[i]
	}
	return cells
}

func cellsToWorld(cells []GridCell) []Vec2 {
	path := make([]Vec2, len(cells))
	for i, cell := range cells {
		path[i] = CellToWorld(cell)
	}
	return path
}

// FindPath searches with the default PathFinder.
func FindPath(m *TileMap, start, goal GridCell) ([]Vec2, bool) {
	return PathFinder{}.Find(m, start, goal)
}

// PathDistance sums the straight-line length from current through every
// waypoint in order.
func PathDistance(current Vec2, path []Vec2) float64 {
	if len(path) == 0 {
		return 0
	}
	total := 0.0
	prev := current
	for _, node := range path {
		total += Distance(prev, node)
		prev = node
	}
	return total
}

// PathTime estimates the seconds needed to walk path at speed. It never
// mutates path.
func PathTime(current Vec2, speed float64, path []Vec2) (float64, error) {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 0 {
		return 0, ErrInvalidSpeed
	}
	if len(path) == 0 {
		return 0, nil
	}
	return PathDistance(current, path) / speed, nil
}

// ClonePath returns a copy of path that shares no storage with it.
func ClonePath(path []Vec2) []Vec2 {
	if len(path) == 0 {
		return nil
	}
	cloned := make([]Vec2, len(path))
	copy(cloned, path)
	return cloned
}
