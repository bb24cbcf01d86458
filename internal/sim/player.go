package sim

import (
	"errors"
	"fmt"

	"automated-kingdom/server/logging"
)

// ErrUnknownPlayer is returned when a command names a player that does not exist.
var ErrUnknownPlayer = errors.New("sim: unknown player")

// WorkersPerPlayer is the size of each player's starting roster.
const WorkersPerPlayer = 4

// PlayerColor identifies a player; each colour owns agents and a stockpile.
type PlayerColor string

const (
	ColorBlue   PlayerColor = "blue"
	ColorRed    PlayerColor = "red"
	ColorGreen  PlayerColor = "green"
	ColorYellow PlayerColor = "yellow"
)

// PlayerColors lists every colour in seating order.
var PlayerColors = []PlayerColor{ColorBlue, ColorRed, ColorGreen, ColorYellow}

// ParsePlayerColor validates a colour name.
func ParsePlayerColor(name string) (PlayerColor, error) {
	for _, color := range PlayerColors {
		if string(color) == name {
			return color, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlayer, name)
}

// Player owns agents, buildings and an ore stockpile.
type Player struct {
	Color     PlayerColor
	Stockpile map[OreKind]int
}

func newPlayer(color PlayerColor) *Player {
	return &Player{Color: color, Stockpile: map[OreKind]int{OreGold: 0}}
}

// CanAfford reports whether the stockpile covers cost.
func (p *Player) CanAfford(cost map[OreKind]int) bool {
	for kind, amount := range cost {
		if p.Stockpile[kind] < amount {
			return false
		}
	}
	return true
}

// Spend debits cost, failing without side effects when it cannot be paid.
func (p *Player) Spend(cost map[OreKind]int) error {
	if !p.CanAfford(cost) {
		return ErrInsufficientResources
	}
	for kind, amount := range cost {
		p.Stockpile[kind] -= amount
	}
	return nil
}

// Credit adds amount of kind to the stockpile.
func (p *Player) Credit(kind OreKind, amount int) {
	if p.Stockpile == nil {
		p.Stockpile = make(map[OreKind]int)
	}
	p.Stockpile[kind] += amount
}

func (p *Player) entityRef() logging.EntityRef {
	return logging.EntityRef{ID: string(p.Color), Kind: logging.EntityKindPlayer}
}
