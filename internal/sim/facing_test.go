package sim

import "testing"

func TestResolveHeading(t *testing.T) {
	cases := []struct {
		name     string
		dx, dy   float64
		previous FacingDirection
		want     FacingDirection
	}{
		{"still keeps previous", 0, 0, FacingLeft, FacingLeft},
		{"up", 0, -3, FacingDown, FacingUp},
		{"down", 0, 3, FacingUp, FacingDown},
		{"left", -3, 0, FacingUp, FacingLeft},
		{"right", 3, 0, FacingUp, FacingRight},
		{"up-right keeps up", 2, -2, FacingUp, FacingUp},
		{"up-right from left turns right", 2, -2, FacingLeft, FacingRight},
		{"down-left keeps down", -1, 1, FacingDown, FacingDown},
		{"down-left from up turns left", -1, 1, FacingUp, FacingLeft},
		{"down-right from right stays right", 1, 1, FacingRight, FacingRight},
		{"up-left from down turns left", -1, -1, FacingDown, FacingLeft},
	}
	for _, tc := range cases {
		if got := ResolveHeading(tc.dx, tc.dy, tc.previous); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}
