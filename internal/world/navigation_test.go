package world

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
)

// bfsSteps is an independent reference search over the same move rules.
func bfsSteps(m *TileMap, start, goal GridCell) (int, bool) {
	if start == goal {
		return 0, true
	}
	dist := map[GridCell]int{start: 0}
	queue := []GridCell{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				next := GridCell{X: current.X + dx, Y: current.Y + dy}
				if !admittedMove(m, current, next) {
					continue
				}
				if _, seen := dist[next]; seen {
					continue
				}
				dist[next] = dist[current] + 1
				if next == goal {
					return dist[next], true
				}
				queue = append(queue, next)
			}
		}
	}
	return 0, false
}

func admittedMove(m *TileMap, from, to GridCell) bool {
	dx := to.X - from.X
	dy := to.Y - from.Y
	if dx < -1 || dx > 1 || dy < -1 || dy > 1 || (dx == 0 && dy == 0) {
		return false
	}
	if !m.Walkable(to) {
		return false
	}
	if dx != 0 && dy != 0 {
		return m.Walkable(GridCell{X: from.X + dx, Y: from.Y}) && m.Walkable(GridCell{X: from.X, Y: from.Y + dy})
	}
	return true
}

func assertValidPath(t *testing.T, m *TileMap, result SearchResult, start, goal GridCell) {
	t.Helper()
	if len(result.Cells) == 0 {
		t.Fatalf("expected non-empty path")
	}
	if result.Cells[0] != start {
		t.Fatalf("expected path to start at %+v, got %+v", start, result.Cells[0])
	}
	if result.Cells[len(result.Cells)-1] != goal {
		t.Fatalf("expected path to end at %+v, got %+v", goal, result.Cells[len(result.Cells)-1])
	}
	if len(result.Path) != len(result.Cells) {
		t.Fatalf("expected %d waypoints, got %d", len(result.Cells), len(result.Path))
	}
	for i := 1; i < len(result.Cells); i++ {
		if !admittedMove(m, result.Cells[i-1], result.Cells[i]) {
			t.Fatalf("step %d from %+v to %+v is not an admitted move", i, result.Cells[i-1], result.Cells[i])
		}
		if result.Path[i] != CellToWorld(result.Cells[i]) {
			t.Fatalf("waypoint %d mismatch: %+v vs %+v", i, result.Path[i], CellToWorld(result.Cells[i]))
		}
	}
}

func TestFindPathRoutesAroundCornerWalls(t *testing.T) {
	rows := make([]string, 10)
	for i := range rows {
		rows[i] = ".........."
	}
	rows[8] = "........##"
	m := MustParseLayout(strings.Join(rows, "\n"))
	start := GridCell{X: 0, Y: 0}
	goal := GridCell{X: 9, Y: 9}

	for _, tc := range []struct {
		name   string
		finder PathFinder
	}{
		{name: "manhattan", finder: PathFinder{}},
		{name: "chebyshev", finder: PathFinder{Heuristic: ChebyshevDistance}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result := tc.finder.Search(m, start, goal)
			if !result.Found {
				t.Fatalf("expected a path")
			}
			assertValidPath(t, m, result, start, goal)
			if last := result.Path[len(result.Path)-1]; last != CellToWorld(goal) {
				t.Fatalf("expected last waypoint %+v, got %+v", CellToWorld(goal), last)
			}
			if result.Path[0] != CellToWorld(start) {
				t.Fatalf("expected start cell as waypoint 0, got %+v", result.Path[0])
			}
			if result.Steps() != 11 {
				t.Fatalf("expected 11 steps, got %d", result.Steps())
			}
			if optimal, _ := bfsSteps(m, start, goal); optimal != result.Steps() {
				t.Fatalf("expected optimal %d steps, got %d", optimal, result.Steps())
			}
		})
	}
}

func TestFindPathNoPathToWall(t *testing.T) {
	m := MustParseLayout("....\n.##.\n....\n")

	path, ok := FindPath(m, GridCell{X: 0, Y: 0}, GridCell{X: 1, Y: 1})
	if ok || path != nil {
		t.Fatalf("expected no path into a wall, got %v", path)
	}

	if _, ok := FindPath(m, GridCell{X: 0, Y: 0}, GridCell{X: 9, Y: 0}); ok {
		t.Fatalf("expected no path to an out-of-bounds goal")
	}
}

func TestFindPathNoPathToBlockedCell(t *testing.T) {
	m := MustParseLayout(BorderedLayout(6, 6))
	goal := GridCell{X: 4, Y: 4}
	if err := m.MarkBlocked(goal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := FindPath(m, GridCell{X: 1, Y: 1}, goal); ok {
		t.Fatalf("expected no path to a blocked cell")
	}
}

func TestFindPathStartEqualsGoal(t *testing.T) {
	m := MustParseLayout("...\n")
	cell := GridCell{X: 1, Y: 0}
	path, ok := FindPath(m, cell, cell)
	if !ok {
		t.Fatalf("expected trivial path")
	}
	if len(path) != 1 || path[0] != CellToWorld(cell) {
		t.Fatalf("expected single waypoint %+v, got %v", CellToWorld(cell), path)
	}
}

func TestFindPathUnreachableRegion(t *testing.T) {
	m := MustParseLayout("..#..\n..#..\n..#..\n")
	result := PathFinder{}.Search(m, GridCell{X: 0, Y: 0}, GridCell{X: 4, Y: 0})
	if result.Found {
		t.Fatalf("expected no path across a solid wall")
	}
	if result.Expanded != 6 {
		t.Fatalf("expected the whole left region to be expanded, got %d", result.Expanded)
	}
}

func TestFindPathRejectsCornerCut(t *testing.T) {
	m := MustParseLayout(".#\n#.\n")
	if _, ok := FindPath(m, GridCell{X: 0, Y: 0}, GridCell{X: 1, Y: 1}); ok {
		t.Fatalf("expected diagonal between two walls to be rejected")
	}

	single := MustParseLayout("..\n#.\n")
	result := PathFinder{}.Search(single, GridCell{X: 0, Y: 0}, GridCell{X: 1, Y: 1})
	if !result.Found {
		t.Fatalf("expected a path")
	}
	if result.Steps() != 2 {
		t.Fatalf("expected the diagonal to be refused with one wall flank, got %d steps", result.Steps())
	}
}

func TestFindPathMatchesBreadthFirstWithChebyshev(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	finder := PathFinder{Heuristic: ChebyshevDistance}

	for trial := 0; trial < 500; trial++ {
		width := 3 + rng.Intn(8)
		height := 3 + rng.Intn(8)
		tiles := make([]Tile, width*height)
		for i := range tiles {
			if rng.Float64() < 0.3 {
				tiles[i] = TileWall
			}
		}
		start := GridCell{X: rng.Intn(width), Y: rng.Intn(height)}
		goal := GridCell{X: rng.Intn(width), Y: rng.Intn(height)}
		tiles[start.Y*width+start.X] = TileAir

		m, err := NewTileMap(width, height, tiles)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want, reachable := bfsSteps(m, start, goal)
		result := finder.Search(m, start, goal)
		if result.Found != reachable {
			t.Fatalf("trial %d: expected found=%v, got %v\n%s", trial, reachable, result.Found, m.Layout())
		}
		if !reachable {
			continue
		}
		assertValidPath(t, m, result, start, goal)
		if result.Steps() != want {
			t.Fatalf("trial %d: expected %d steps, got %d\n%s", trial, want, result.Steps(), m.Layout())
		}
	}
}

func TestManhattanHeuristicCanReturnLongerPath(t *testing.T) {
	m := MustParseLayout(".....#\n...#..\n......\n")
	start := GridCell{X: 5, Y: 1}
	goal := GridCell{X: 0, Y: 0}

	optimal, ok := bfsSteps(m, start, goal)
	if !ok || optimal != 5 {
		t.Fatalf("expected optimal 5 steps, got %d (%v)", optimal, ok)
	}

	manhattan := PathFinder{}.Search(m, start, goal)
	assertValidPath(t, m, manhattan, start, goal)
	if manhattan.Steps() != 6 {
		t.Fatalf("expected manhattan search to take 6 steps, got %d", manhattan.Steps())
	}

	chebyshev := PathFinder{Heuristic: ChebyshevDistance}.Search(m, start, goal)
	if chebyshev.Steps() != optimal {
		t.Fatalf("expected chebyshev search to be optimal, got %d", chebyshev.Steps())
	}
}

func TestFindPathDeterministic(t *testing.T) {
	m := MustParseLayout(BorderedLayout(12, 12))
	first := PathFinder{}.Search(m, GridCell{X: 1, Y: 1}, GridCell{X: 10, Y: 7})
	for i := 0; i < 5; i++ {
		again := PathFinder{}.Search(m, GridCell{X: 1, Y: 1}, GridCell{X: 10, Y: 7})
		if len(again.Cells) != len(first.Cells) {
			t.Fatalf("expected identical path lengths")
		}
		for j := range again.Cells {
			if again.Cells[j] != first.Cells[j] {
				t.Fatalf("expected identical paths, diverged at %d", j)
			}
		}
	}
}

func TestFindPathExpansionBudget(t *testing.T) {
	m := MustParseLayout(BorderedLayout(20, 20))
	result := PathFinder{MaxExpansions: 3}.Search(m, GridCell{X: 1, Y: 1}, GridCell{X: 18, Y: 18})
	if result.Found {
		t.Fatalf("expected budget to stop the search")
	}
	if !result.Truncated || result.Expanded != 3 {
		t.Fatalf("expected truncated after 3 expansions, got %+v", result)
	}

	full := PathFinder{MaxExpansions: 1000}.Search(m, GridCell{X: 1, Y: 1}, GridCell{X: 18, Y: 18})
	if !full.Found || full.Truncated {
		t.Fatalf("expected generous budget to find a path, got %+v", full)
	}
}

func TestPathTime(t *testing.T) {
	current := Vec2{X: 0, Y: 0}
	path := []Vec2{{X: 30, Y: 40}, {X: 30, Y: 80}}

	got, err := PathTime(current, 10, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-9) > 1e-9 {
		t.Fatalf("expected 9 seconds, got %f", got)
	}
	if path[0] != (Vec2{X: 30, Y: 40}) || len(path) != 2 {
		t.Fatalf("expected path to be left unmodified, got %v", path)
	}

	if empty, err := PathTime(current, 10, nil); err != nil || empty != 0 {
		t.Fatalf("expected zero for empty path, got %f (%v)", empty, err)
	}

	for _, speed := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		if _, err := PathTime(current, speed, path); !errors.Is(err, ErrInvalidSpeed) {
			t.Fatalf("expected ErrInvalidSpeed for %v, got %v", speed, err)
		}
	}
}

func TestPathTimeMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	current := Vec2{X: 16, Y: 16}
	path := make([]Vec2, 0)
	prev := 0.0
	for i := 0; i < 50; i++ {
		path = append(path, Vec2{X: rng.Float64() * 640, Y: rng.Float64() * 640})
		got, err := PathTime(current, 200, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got < 0 {
			t.Fatalf("expected non-negative time, got %f", got)
		}
		if got < prev {
			t.Fatalf("expected time to grow when appending, %f < %f", got, prev)
		}
		prev = got
	}
}
