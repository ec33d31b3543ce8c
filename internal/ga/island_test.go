package ga

import (
	"testing"

	"github.com/distcgp/distcgp/internal/genome"
	"github.com/distcgp/distcgp/internal/truthtable"
)

func perfWith(bitErrors, activeGenes, age uint32) genome.PerfData {
	return genome.PerfData{BitErrors: bitErrors, ActiveGenes: activeGenes, GenomeAge: age}
}

func xorTarget(t *testing.T) *truthtable.Table {
	tt, err := truthtable.New(2, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := uint32(0); i < 4; i++ {
		a := i & 1
		b := (i >> 1) & 1
		out := a ^ b
		if _, err := tt.AddPattern(i, out); err != nil {
			t.Fatalf("AddPattern: %v", err)
		}
	}
	return tt
}

func TestIslandInitialiseLocal(t *testing.T) {
	algo := NewSubPopulationAlgorithm(8, 32, 1)
	isl := NewIsland(algo, 0, 0)
	target := xorTarget(t)

	if err := isl.Initialise(target, DefaultFitnessFunc, true); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if !isl.IsLocal() {
		t.Fatalf("expected island to be local")
	}
	if len(isl.genomes) != 8 {
		t.Fatalf("expected 8 genomes, got %d", len(isl.genomes))
	}
	// Rank map should be sorted ascending by fitness.
	for i := 1; i < len(isl.rankMap); i++ {
		if isl.rankMap[i-1].fitness > isl.rankMap[i].fitness {
			t.Fatalf("rank map not sorted ascending at %d", i)
		}
	}
}

func TestIslandInitialiseRemote(t *testing.T) {
	algo := NewSubPopulationAlgorithm(8, 32, 1)
	isl := NewIsland(algo, 3, 1)
	target := xorTarget(t)

	if err := isl.Initialise(target, DefaultFitnessFunc, false); err != nil {
		t.Fatalf("Initialise: %v", err)
	}
	if isl.IsLocal() {
		t.Fatalf("expected island to be remote")
	}
}

func TestIslandIterateImprovesOrHoldsFitness(t *testing.T) {
	algo := NewSubPopulationAlgorithm(16, 64, 7)
	isl := NewIsland(algo, 0, 0)
	target := xorTarget(t)
	// Every genome ages by one per generation, and DefaultFitnessFunc adds
	// the age, so its best score can rise with age alone. The age term is
	// left out here: the rank-0 genome is never an unfit pick, so its
	// age-free score can only hold or improve.
	ff := func(p genome.PerfData) uint32 { return DefaultFitnessFunc(p) - p.GenomeAge }
	if err := isl.Initialise(target, ff, true); err != nil {
		t.Fatalf("Initialise: %v", err)
	}

	before := isl.GetPerfData().BestGenomeFitness
	for i := 0; i < 200; i++ {
		if err := isl.Iterate(target, ff); err != nil {
			t.Fatalf("Iterate: %v", err)
		}
	}
	after := isl.GetPerfData().BestGenomeFitness
	if after > before {
		t.Fatalf("best fitness got worse: before=%d after=%d", before, after)
	}
}

func TestExportImportFrameRoundTrip(t *testing.T) {
	algo := NewSubPopulationAlgorithm(4, 16, 3)
	target := xorTarget(t)

	src := NewIsland(algo, 0, 0)
	if err := src.Initialise(target, DefaultFitnessFunc, true); err != nil {
		t.Fatalf("Initialise src: %v", err)
	}
	dst := NewIsland(algo, 1, 0)
	if err := dst.Initialise(target, DefaultFitnessFunc, true); err != nil {
		t.Fatalf("Initialise dst: %v", err)
	}

	batch := src.ExportFrame([]uint32{0, 1})
	if batch.SourceDomainIndex != 0 {
		t.Fatalf("expected source domain index 0, got %d", batch.SourceDomainIndex)
	}
	if err := dst.ImportFrame([]uint32{0, 1}, batch); err != nil {
		t.Fatalf("ImportFrame: %v", err)
	}
}

func TestCopyGenomesRequiresLocal(t *testing.T) {
	algo := NewSubPopulationAlgorithm(4, 16, 3)
	target := xorTarget(t)
	remote := NewIsland(algo, 2, 1)
	if err := remote.Initialise(target, DefaultFitnessFunc, false); err != nil {
		t.Fatalf("Initialise: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic copying from a nonlocal island")
		}
	}()
	local := NewIsland(algo, 0, 0)
	_ = local.Initialise(target, DefaultFitnessFunc, true)
	local.CopyGenomes([]uint32{0}, remote)
}

func TestDefaultFitnessFuncPrioritizesCorrectness(t *testing.T) {
	// Any nonzero bit error should outrank a huge active gene count that
	// has zero bit errors, since any bit error charges the genome as if it
	// had 1024 active genes.
	withErrors := DefaultFitnessFunc(perfWith(1, 2, 0))
	withoutErrors := DefaultFitnessFunc(perfWith(0, 1023, 0))
	if withErrors <= withoutErrors {
		t.Fatalf("expected a genome with bit errors to score worse: %d vs %d", withErrors, withoutErrors)
	}
}
