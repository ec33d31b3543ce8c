// Package ga implements the per-process building blocks of the island
// model: the subpopulation selection/mutation algorithm and the island
// (subpopulation) itself.
package ga

import (
	"math/rand/v2"

	"github.com/distcgp/distcgp/internal/gene"
)

// SubPopulationAlgorithm holds one island's random number generator and its
// selection/mutation distribution parameters.
type SubPopulationAlgorithm struct {
	rng *rand.Rand

	genomeCount  uint32
	genomeLength uint32

	allowableFunctions []gene.Function

	mutateCount uint32
	selectCount uint32

	highSelectRange uint32
	lowSelectRange  uint32

	minFeedForward uint32
	maxFeedForward uint32
}

// NewSubPopulationAlgorithm builds an algorithm sized for genomeCount
// genomes of genomeLength gates each, seeded from seed. Defaults mirror the
// original: AND/OR/XOR/NOT as the allowable gate set, one mutation and one
// selection per iteration, and select ranges spanning half the population.
func NewSubPopulationAlgorithm(genomeCount, genomeLength uint32, seed uint64) *SubPopulationAlgorithm {
	a := &SubPopulationAlgorithm{
		genomeCount:        genomeCount,
		genomeLength:       genomeLength,
		allowableFunctions: []gene.Function{gene.FnAND, gene.FnOR, gene.FnXOR, gene.FnNOT},
		mutateCount:        1,
		selectCount:        1,
		minFeedForward:     1,
		maxFeedForward:     genomeLength,
	}
	a.highSelectRange = genomeCount / 2
	a.lowSelectRange = genomeCount / 2
	a.SetSeed(seed)
	return a
}

// SetSeed reseeds the island's random number generator.
func (a *SubPopulationAlgorithm) SetSeed(seed uint64) {
	a.rng = rand.New(rand.NewPCG(seed, seed))
}

// GenomeCount returns the number of genomes in the island.
func (a *SubPopulationAlgorithm) GenomeCount() uint32 { return a.genomeCount }

// GenomeLength returns the number of gates per genome.
func (a *SubPopulationAlgorithm) GenomeLength() uint32 { return a.genomeLength }

// MutateCount returns the number of point mutations applied per Mutate call.
func (a *SubPopulationAlgorithm) MutateCount() int { return int(a.mutateCount) }

// SetMutateCount sets the number of point mutations applied per Mutate call.
func (a *SubPopulationAlgorithm) SetMutateCount(n uint32) { a.mutateCount = n }

// SelectCount returns the number of selection events per island iteration.
func (a *SubPopulationAlgorithm) SelectCount() uint32 { return a.selectCount }

// SetSelectCount sets the number of selection events per island iteration.
func (a *SubPopulationAlgorithm) SetSelectCount(n uint32) { a.selectCount = n }

// SetAllowableFunctions restricts the gate functions new/mutated genes may
// draw from.
func (a *SubPopulationAlgorithm) SetAllowableFunctions(fns []gene.Function) {
	a.allowableFunctions = append([]gene.Function(nil), fns...)
}

// MinFeedForward and MaxFeedForward bound how far back (in gate index) a
// gate's predecessors may reach.
func (a *SubPopulationAlgorithm) MinFeedForward() uint32 { return a.minFeedForward }
func (a *SubPopulationAlgorithm) MaxFeedForward() uint32 { return a.maxFeedForward }

// SetMinGateDelays and SetMaxGateDelays are named for the *result* they
// produce on genome depth, not the feed-forward field they adjust — matching
// the original algorithm's naming, where a minimum-gate-delay constraint is
// achieved by bounding the maximum feed-forward span, and vice versa.
func (a *SubPopulationAlgorithm) SetMinGateDelays(gd uint32) {
	if gd == 0 {
		a.maxFeedForward = a.genomeLength
		return
	}
	a.maxFeedForward = a.genomeLength / gd
}

func (a *SubPopulationAlgorithm) SetMaxGateDelays(gd uint32) {
	a.minFeedForward = a.genomeLength / gd
}

// LocalRand returns a uniformly distributed integer in [minimum, maximum].
func (a *SubPopulationAlgorithm) LocalRand(minimum, maximum int) int {
	if maximum <= minimum {
		return minimum
	}
	return minimum + int(a.rng.IntN(maximum-minimum+1))
}

// RandomHighGenome draws a rank-map index biased toward the fit end (index
// 0 is the fittest). Two nested draws from a fixed starting bound produce a
// distribution skewed toward zero, without ever quite reaching the tail.
func (a *SubPopulationAlgorithm) RandomHighGenome() uint32 {
	r := int(a.highSelectRange) - 1
	for i := 0; i < 2; i++ {
		r = a.LocalRand(0, r)
	}
	return uint32(r)
}

// RandomLowGenome draws a rank-map index biased toward the unfit end (index
// genomeCount-1 is the least fit), mirroring RandomHighGenome from the
// other end of the map.
func (a *SubPopulationAlgorithm) RandomLowGenome() uint32 {
	r := int(a.lowSelectRange) - 1
	for i := 0; i < 2; i++ {
		r = a.LocalRand(0, r)
	}
	return a.genomeCount - 1 - uint32(r)
}

// RandomGeneInputIndex returns a feed-forward-legal predecessor index for a
// gate at position i: uniformly drawn from the window
// [i-maxFeedForward, i-minFeedForward], clamped to stay within [0, i).
func (a *SubPopulationAlgorithm) RandomGeneInputIndex(i uint32) uint32 {
	rangeStart := int(i) - int(a.maxFeedForward)
	rangeEnd := int(i) - int(a.minFeedForward)

	if rangeStart < 0 {
		rangeEnd += -rangeStart
		rangeStart = 0
	}
	if rangeEnd >= int(i) {
		rangeEnd = int(i) - 1
	}
	return uint32(a.LocalRand(rangeStart, rangeEnd))
}

// RandomGeneFunction draws uniformly from the allowable gate function set.
func (a *SubPopulationAlgorithm) RandomGeneFunction() gene.Function {
	return a.allowableFunctions[a.LocalRand(0, len(a.allowableFunctions)-1)]
}

// Clone copies the algorithm's configuration (geometry, allowable
// functions, selection/mutation counts, feed-forward bounds) without its
// random number generator state. Callers reseed the clone, matching the
// original's per-island seeding of a shared algorithm template from the
// population's own RNG.
func (a *SubPopulationAlgorithm) Clone() *SubPopulationAlgorithm {
	clone := &SubPopulationAlgorithm{
		genomeCount:     a.genomeCount,
		genomeLength:    a.genomeLength,
		mutateCount:     a.mutateCount,
		selectCount:     a.selectCount,
		highSelectRange: a.highSelectRange,
		lowSelectRange:  a.lowSelectRange,
		minFeedForward:  a.minFeedForward,
		maxFeedForward:  a.maxFeedForward,
	}
	clone.allowableFunctions = append([]gene.Function(nil), a.allowableFunctions...)
	clone.SetSeed(0)
	return clone
}
