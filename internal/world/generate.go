package world

import "math/rand"

// SpawnCenter returns the cell around which players spawn.
func SpawnCenter(m *TileMap) GridCell {
	return GridCell{X: m.Width() / 2, Y: m.Height() / 2}
}

// GenerateTileMap builds the terrain for cfg. An explicit layout wins over
// the generator. Generated maps are enclosed by walls, keep a clear square
// around the spawn centre, and have every air cell reachable from it.
func GenerateTileMap(cfg Config) (*TileMap, error) {
	cfg = cfg.normalized()
	if cfg.Layout != "" {
		return ParseLayout(cfg.Layout)
	}

	m, err := ParseLayout(BorderedLayout(cfg.Width, cfg.Height))
	if err != nil {
		return nil, err
	}
	center := SpawnCenter(m)
	rng := NewDeterministicRNG(cfg.Seed, "map.walls")
	interiorMin := GridCell{X: 1, Y: 1}
	interiorMax := GridCell{X: m.width - 2, Y: m.height - 2}

	for blob := 0; blob < cfg.WallBlobs; blob++ {
		cell := RandomCell(rng, interiorMin, interiorMax)
		for step := 0; step < cfg.WallBlobSize; step++ {
			if !inClearing(cell, center, cfg.SpawnClearing) {
				m.tiles[m.index(cell)] = TileWall
			}
			cell = randomWalkStep(rng, cell, interiorMin, interiorMax)
		}
	}

	fillUnreachable(m, center)
	return m, nil
}

func inClearing(cell, center GridCell, radius int) bool {
	return absInt(cell.X-center.X) <= radius && absInt(cell.Y-center.Y) <= radius
}

func randomWalkStep(rng *rand.Rand, cell, min, max GridCell) GridCell {
	delta := navNeighborOffsets[rng.Intn(4)]
	next := GridCell{X: cell.X + delta.dx, Y: cell.Y + delta.dy}
	if next.X < min.X || next.Y < min.Y || next.X > max.X || next.Y > max.Y {
		return cell
	}
	return next
}

// fillUnreachable turns air cells that cannot be reached from origin into
// walls so that every walkable cell belongs to one region.
func fillUnreachable(m *TileMap, origin GridCell) {
	if !m.Walkable(origin) {
		return
	}
	reached := make([]bool, len(m.tiles))
	reached[m.index(origin)] = true
	queue := []GridCell{origin}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, delta := range navNeighborOffsets[:4] {
			next := GridCell{X: current.X + delta.dx, Y: current.Y + delta.dy}
			if !m.Walkable(next) || reached[m.index(next)] {
				continue
			}
			reached[m.index(next)] = true
			queue = append(queue, next)
		}
	}
	for i := range m.tiles {
		if !reached[i] {
			m.tiles[i] = TileWall
		}
	}
}

// GenerateOreSites picks top-left cells for square ore patches of the
// configured size. Each site and the ring of cells around it must be
// walkable and clear of the spawn area and of other sites.
func GenerateOreSites(m *TileMap, cfg Config) []GridCell {
	cfg = cfg.normalized()
	if m == nil || cfg.OrePatches == 0 {
		return nil
	}
	rng := NewDeterministicRNG(cfg.Seed, "map.ore")
	size := cfg.OrePatchSize
	center := SpawnCenter(m)
	min := GridCell{X: 1, Y: 1}
	max := GridCell{X: m.width - 1 - size, Y: m.height - 1 - size}
	if max.X < min.X || max.Y < min.Y {
		return nil
	}

	sites := make([]GridCell, 0, cfg.OrePatches)
	reserved := make(map[GridCell]struct{})
	attempts := 0
	maxAttempts := cfg.OrePatches * 30

	for len(sites) < cfg.OrePatches && attempts < maxAttempts {
		attempts++
		origin := RandomCell(rng, min, max)
		if !siteAvailable(m, origin, size, center, cfg.SpawnClearing+1, reserved) {
			continue
		}
		for y := origin.Y - 1; y <= origin.Y+size; y++ {
			for x := origin.X - 1; x <= origin.X+size; x++ {
				reserved[GridCell{X: x, Y: y}] = struct{}{}
			}
		}
		sites = append(sites, origin)
	}
	return sites
}

func siteAvailable(m *TileMap, origin GridCell, size int, center GridCell, clearing int, reserved map[GridCell]struct{}) bool {
	for y := origin.Y - 1; y <= origin.Y+size; y++ {
		for x := origin.X - 1; x <= origin.X+size; x++ {
			cell := GridCell{X: x, Y: y}
			if !m.Walkable(cell) || inClearing(cell, center, clearing) {
				return false
			}
			if _, taken := reserved[cell]; taken {
				return false
			}
		}
	}
	return true
}

// SquareCells lists the width×height cells anchored at origin in row-major order.
func SquareCells(origin GridCell, width, height int) []GridCell {
	cells := make([]GridCell, 0, width*height)
	for y := origin.Y; y < origin.Y+height; y++ {
		for x := origin.X; x < origin.X+width; x++ {
			cells = append(cells, GridCell{X: x, Y: y})
		}
	}
	return cells
}
