package sim

import (
	"errors"
	"fmt"
	"strconv"

	"automated-kingdom/server/internal/world"
)

var (
	// ErrUnknownBuilding is returned for building kinds the world does not know.
	ErrUnknownBuilding = errors.New("sim: unknown building kind")
	// ErrPlacementBlocked is returned when a footprint covers a non-walkable cell.
	ErrPlacementBlocked = errors.New("sim: building footprint is not clear")
	// ErrInsufficientResources is returned when the owner cannot pay.
	ErrInsufficientResources = errors.New("sim: insufficient resources")
)

// BuildingKind enumerates placeable structures.
type BuildingKind string

const (
	BuildingHouse BuildingKind = "house"
)

// BuildingSpec describes a kind's footprint and price.
type BuildingSpec struct {
	Width  int
	Height int
	Cost   map[OreKind]int
}

var buildingSpecs = map[BuildingKind]BuildingSpec{
	BuildingHouse: {Width: 2, Height: 2, Cost: map[OreKind]int{OreGold: 10}},
}

// LookupBuilding returns the spec for kind.
func LookupBuilding(kind BuildingKind) (BuildingSpec, error) {
	spec, ok := buildingSpecs[kind]
	if !ok {
		return BuildingSpec{}, fmt.Errorf("%w: %q", ErrUnknownBuilding, kind)
	}
	return spec, nil
}

// BuildingID identifies a placed building.
type BuildingID uint32

func (id BuildingID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Building is a placed structure occupying blocked cells.
type Building struct {
	ID     BuildingID
	Kind   BuildingKind
	Owner  PlayerColor
	Origin world.GridCell
	Width  int
	Height int
}

// Cells lists the cells the building occupies.
func (b *Building) Cells() []world.GridCell {
	return world.SquareCells(b.Origin, b.Width, b.Height)
}

// Rect returns the building's world-space rectangle.
func (b *Building) Rect() world.Rect {
	return world.CellRect(b.Origin, b.Width, b.Height)
}
