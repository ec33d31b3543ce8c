package ga

import (
	"fmt"
	"sort"

	"github.com/distcgp/distcgp/internal/genome"
	"github.com/distcgp/distcgp/internal/truthtable"
	"github.com/distcgp/distcgp/internal/wire"
)

// FitnessFunc reduces a genome's performance record to a single comparable
// fitness score. Lower is fitter throughout this package, matching the
// original's rank-map convention (rank 0 is the best genome).
type FitnessFunc func(genome.PerfData) uint32

// DefaultFitnessFunc is the fitness function the reference driver wires by
// default: (bitErrors << 6) + (effectiveActiveGenes << 3) + genomeAge,
// where effectiveActiveGenes becomes 1024 the moment a genome has any bit
// errors at all. At equal age an erroneous genome therefore never ranks
// ahead of an error-free one with at most 1024 active genes; one active
// gene weighs as much as eight generations of age.
func DefaultFitnessFunc(p genome.PerfData) uint32 {
	effectiveActiveGenes := p.ActiveGenes
	if p.BitErrors != 0 {
		effectiveActiveGenes = 1024
	}
	return (p.BitErrors << 6) + (effectiveActiveGenes << 3) + p.GenomeAge
}

// rankEntry pairs a genome with its last-computed fitness; the slot index
// is carried as a tie-breaker so rank map ordering is always a strict,
// reproducible total order.
type rankEntry struct {
	genome  *genome.Genome
	index   uint32
	fitness uint32
}

func (e rankEntry) sortKey() uint64 {
	return uint64(e.fitness)<<32 | uint64(e.index)
}

// Perf summarizes an island's contribution to the global rank map.
type Perf struct {
	BestGenomeFitness uint32
}

// Island is one subpopulation: a pool of genomes local to this process,
// ranked by fitness, evolving through tournament-style select/mutate
// cycles.
type Island struct {
	Algorithm *SubPopulationAlgorithm

	DomainIndex uint32 // position in the global population, independent of process
	ProcessRank uint32 // process this island's genomes live on

	initialised bool
	local       bool

	genomes []*genome.Genome
	rankMap []rankEntry
}

// NewIsland constructs an island at the given domain index, to be hosted on
// processRank.
func NewIsland(algorithm *SubPopulationAlgorithm, domainIndex, processRank uint32) *Island {
	return &Island{Algorithm: algorithm, DomainIndex: domainIndex, ProcessRank: processRank}
}

// Initialise builds the island's genome pool if isLocal is true (this
// process hosts the island); otherwise it's recorded as initialised-but-
// remote, a placeholder other islands can still address by domain index.
func (isl *Island) Initialise(target *truthtable.Table, ff FitnessFunc, isLocal bool) error {
	isl.local = isLocal
	if !isLocal {
		isl.initialised = true
		return nil
	}

	isl.genomes = make([]*genome.Genome, isl.Algorithm.GenomeCount())
	isl.rankMap = make([]rankEntry, len(isl.genomes))
	for i := range isl.genomes {
		isl.genomes[i] = genome.New(int(isl.Algorithm.GenomeLength()), target.InputCount(), target.OutputCount(), isl.Algorithm)
		isl.rankMap[i] = rankEntry{genome: isl.genomes[i], index: uint32(i)}
	}

	if err := isl.UpdateRankMap(target, ff); err != nil {
		return err
	}
	isl.initialised = true
	return nil
}

func (isl *Island) assertInitialised() {
	if !isl.initialised {
		panic("ga: island used before Initialise")
	}
}

func (isl *Island) assertLocal() {
	if !isl.local {
		panic("ga: operation requires a local island")
	}
}

// IsLocal reports whether this process hosts the island's genomes.
func (isl *Island) IsLocal() bool {
	isl.assertInitialised()
	return isl.local
}

// UpdateRankMap recomputes every genome's fitness and re-sorts the rank
// map. The composite (fitness, slot index) sort key is unique per entry, so
// any stable or unstable O(n log n) sort reproduces the same order the
// original's hand-rolled quicksort does; sort.Slice is used here since
// nothing about GA correctness depends on the sorting algorithm itself.
func (isl *Island) UpdateRankMap(target *truthtable.Table, ff FitnessFunc) error {
	for i := range isl.rankMap {
		perf, err := isl.rankMap[i].genome.GetPerfData(target)
		if err != nil {
			return err
		}
		isl.rankMap[i].fitness = ff(perf)
	}
	sort.Slice(isl.rankMap, func(i, j int) bool {
		return isl.rankMap[i].sortKey() < isl.rankMap[j].sortKey()
	})
	return nil
}

// Iterate runs one generation: SelectCount() tournament events, each
// copying a high-biased (fit) genome over a low-biased (unfit) one and
// mutating the copy, followed by an age increment for every genome and a
// rank map refresh.
func (isl *Island) Iterate(target *truthtable.Table, ff FitnessFunc) error {
	isl.assertInitialised()

	for i := uint32(0); i < isl.Algorithm.SelectCount(); i++ {
		fitIdx := isl.Algorithm.RandomHighGenome()
		unfitIdx := isl.Algorithm.RandomLowGenome()

		if fitIdx != unfitIdx {
			fitGenome := isl.rankMap[fitIdx].genome
			unfitGenome := isl.rankMap[unfitIdx].genome
			unfitGenome.CopyFrom(fitGenome)
			unfitGenome.Mutate(isl.Algorithm)
		}
	}

	for i := range isl.rankMap {
		isl.rankMap[i].genome.IncrementAge()
	}

	return isl.UpdateRankMap(target, ff)
}

// IterateN runs Iterate n times in sequence.
func (isl *Island) IterateN(target *truthtable.Table, ff FitnessFunc, n int) error {
	for i := 0; i < n; i++ {
		if err := isl.Iterate(target, ff); err != nil {
			return err
		}
	}
	return nil
}

// GetPerfData returns the island's best fitness, the only datum the global
// population tracks about a local island.
func (isl *Island) GetPerfData() Perf {
	isl.assertInitialised()
	isl.assertLocal()
	return Perf{BestGenomeFitness: isl.rankMap[0].fitness}
}

// CopyGenomes copies genomes at the given slot indices from a source island
// that is also local to this process — a plain in-memory copy, with no
// transport involved.
func (isl *Island) CopyGenomes(indices []uint32, src *Island) {
	isl.assertLocal()
	src.assertLocal()
	for _, idx := range indices {
		isl.genomes[idx].CopyFrom(src.genomes[idx])
	}
}

// ExportFrame packages the genomes at the given slot indices into a wire
// batch tagged with this island's domain index, ready to hand to
// internal/transport for delivery to a remote process.
func (isl *Island) ExportFrame(indices []uint32) wire.MigrationBatch {
	isl.assertLocal()
	batch := wire.MigrationBatch{SourceDomainIndex: isl.DomainIndex, Genomes: make([]wire.GenomeFrame, len(indices))}
	for i, idx := range indices {
		batch.Genomes[i] = isl.genomes[idx].Frame()
	}
	return batch
}

// ImportFrame applies a received migration batch to the genomes at the
// given slot indices, in the same order the batch was built in.
func (isl *Island) ImportFrame(indices []uint32, batch wire.MigrationBatch) error {
	isl.assertLocal()
	if len(batch.Genomes) != len(indices) {
		return fmt.Errorf("ga: migration batch has %d genomes, expected %d", len(batch.Genomes), len(indices))
	}
	for i, idx := range indices {
		isl.genomes[idx].ParseFrame(batch.Genomes[i])
	}
	return nil
}

// DumpRankMap renders the island's rank map as a multi-line string, one
// line per genome, for the periodic stdout dump.
func (isl *Island) DumpRankMap(target *truthtable.Table) (string, error) {
	if !isl.IsLocal() {
		return "", nil
	}
	out := fmt.Sprintf("domain index %d\n", isl.DomainIndex)
	for _, entry := range isl.rankMap {
		perf, err := entry.genome.GetPerfData(target)
		if err != nil {
			return "", err
		}
		out += perf.String() + "\n"
	}
	return out, nil
}

// BestGenome returns the fittest genome in the rank map, for checkpointing
// and final-result archiving.
func (isl *Island) BestGenome() *genome.Genome {
	isl.assertLocal()
	return isl.rankMap[0].genome
}
