package sim

// FacingDirection identifies the orientation of an agent.
type FacingDirection string

const (
	FacingUp    FacingDirection = "up"
	FacingDown  FacingDirection = "down"
	FacingLeft  FacingDirection = "left"
	FacingRight FacingDirection = "right"
)

// ResolveHeading maps a movement delta to a facing. Pure axis motion picks
// the matching cardinal. Diagonal motion keeps the first cardinal of the pair
// (vertical) only when the agent already faces it, otherwise it takes the
// horizontal one. A zero delta keeps previous.
func ResolveHeading(dx, dy float64, previous FacingDirection) FacingDirection {
	switch {
	case dx == 0 && dy == 0:
		return previous
	case dx == 0 && dy < 0:
		return FacingUp
	case dx == 0 && dy > 0:
		return FacingDown
	case dy == 0 && dx < 0:
		return FacingLeft
	case dy == 0 && dx > 0:
		return FacingRight
	}

	vertical := FacingDown
	if dy < 0 {
		vertical = FacingUp
	}
	horizontal := FacingRight
	if dx < 0 {
		horizontal = FacingLeft
	}
	if previous == vertical {
		return vertical
	}
	return horizontal
}
