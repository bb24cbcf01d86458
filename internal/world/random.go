package world

import (
	"hash/fnv"
	"math/rand"
)

// DeterministicSeedValue derives a stable, non-zero RNG seed for a labelled
// subsystem from the session's root seed.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

// RandomCell picks a cell uniformly inside the inclusive [min, max] range.
func RandomCell(rng *rand.Rand, min, max GridCell) GridCell {
	if rng == nil {
		rng = NewDeterministicRNG(DefaultSeed, "world")
	}
	return GridCell{X: randomInt(rng, min.X, max.X), Y: randomInt(rng, min.Y, max.Y)}
}

func randomInt(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}
