// Package population implements the global scheduler: it owns every
// island (local or remote) known to this process, drives cycles of
// cross-island crossover plus local generations, and keeps a process-wide
// rank map synchronized through an injected Coordinator.
package population

import (
	"math/rand/v2"

	"github.com/distcgp/distcgp/internal/ga"
)

// Algorithm holds the population-level random number generator and the
// cross-island selection/crossover parameters, plus the subpopulation
// algorithm template every island's own algorithm is cloned from.
type Algorithm struct {
	rng *rand.Rand

	subPopulationTemplate *ga.SubPopulationAlgorithm
	subPopulationCount    uint32

	generationsPerCycle uint32
	selectCount         uint32
	crossoverCount      uint32

	highSelectRange uint32
	lowSelectRange  uint32
}

// NewAlgorithm builds a population of subPopCount islands, each with
// genomeCount genomes of genomeLength gates.
func NewAlgorithm(subPopCount, genomeCount, genomeLength uint32) *Algorithm {
	a := &Algorithm{
		subPopulationTemplate: ga.NewSubPopulationAlgorithm(genomeCount, genomeLength, 0),
		subPopulationCount:    subPopCount,
		generationsPerCycle:   65536,
		selectCount:           1,
		crossoverCount:        4,
	}
	a.highSelectRange = subPopCount / 2
	a.lowSelectRange = subPopCount / 2
	a.SetSeed(1)
	return a
}

// SetSeed reseeds the population-level random number generator.
func (a *Algorithm) SetSeed(seed uint64) {
	a.rng = rand.New(rand.NewPCG(seed, seed))
}

// SubPopulationTemplate returns the algorithm every island's own algorithm
// is cloned from during Population.Initialise.
func (a *Algorithm) SubPopulationTemplate() *ga.SubPopulationAlgorithm { return a.subPopulationTemplate }

// SubPopulationCount returns the total number of islands in the
// population, across every process.
func (a *Algorithm) SubPopulationCount() uint32 { return a.subPopulationCount }

// GenerationsPerCycle returns how many local generations each island runs
// per population cycle.
func (a *Algorithm) GenerationsPerCycle() uint32 { return a.generationsPerCycle }

// SetGenerationsPerCycle sets how many local generations each island runs
// per population cycle.
func (a *Algorithm) SetGenerationsPerCycle(n uint32) { a.generationsPerCycle = n }

// SelectCount returns the number of crossover events per population cycle.
func (a *Algorithm) SelectCount() uint32 { return a.selectCount }

// SetSelectCount sets the number of crossover events per population cycle.
func (a *Algorithm) SetSelectCount(n uint32) { a.selectCount = n }

// CrossoverCount returns how many indices RandomCrossoverIndices draws.
func (a *Algorithm) CrossoverCount() uint32 { return a.crossoverCount }

// SetCrossoverCount sets how many indices RandomCrossoverIndices draws.
func (a *Algorithm) SetCrossoverCount(n uint32) { a.crossoverCount = n }

// LocalRand returns a uniformly distributed integer in [minimum, maximum].
func (a *Algorithm) LocalRand(minimum, maximum int) int {
	if maximum <= minimum {
		return minimum
	}
	return minimum + int(a.rng.IntN(maximum-minimum+1))
}

// RandomHighSubPopulation draws an island rank-map index biased toward the
// fit end, the population-level analog of SubPopulationAlgorithm's
// RandomHighGenome.
func (a *Algorithm) RandomHighSubPopulation() uint32 {
	r := int(a.highSelectRange) - 1
	for i := 0; i < 2; i++ {
		r = a.LocalRand(0, r)
	}
	return uint32(r)
}

// RandomLowSubPopulation draws an island rank-map index biased toward the
// unfit end.
func (a *Algorithm) RandomLowSubPopulation() uint32 {
	r := int(a.lowSelectRange) - 1
	for i := 0; i < 2; i++ {
		r = a.LocalRand(0, r)
	}
	return a.subPopulationCount - 1 - uint32(r)
}

// RandomCrossoverIndices draws CrossoverCount() random island indices.
// Every crossover event calls this to keep the population RNG's draw
// sequence identical to the original implementation, even though the
// destination island's crossover striping no longer consults the result
// (see Population.crossoverIsland).
func (a *Algorithm) RandomCrossoverIndices() []uint32 {
	indices := make([]uint32, a.crossoverCount)
	for i := range indices {
		indices[i] = uint32(a.LocalRand(0, int(a.subPopulationCount)-1))
	}
	return indices
}
