// Package genome implements a fixed-length Cartesian Genetic Programming
// genome: an ordered array of gates, the first InputCount of which are
// pseudo-gates whose output buffer is overridden directly from a truth
// table row rather than computed, and the last OutputCount of which are
// read back as the genome's answer.
package genome

import (
	"fmt"
	"math/bits"
	"os"
	"strings"

	"github.com/distcgp/distcgp/internal/gene"
	"github.com/distcgp/distcgp/internal/truthtable"
	"github.com/distcgp/distcgp/internal/wire"
)

// RNG is the subset of the subpopulation algorithm's random-selection
// surface a genome needs to construct and mutate itself. Accepting this
// narrow interface instead of a concrete ga.SubPopulationAlgorithm avoids
// an import cycle between this package and internal/ga.
type RNG interface {
	RandomGeneInputIndex(selectedIndex uint32) uint32
	RandomGeneFunction() gene.Function
	LocalRand(lo, hi int) int
	MutateCount() int
}

// PerfData summarizes a genome's fit against a truth table: correctness
// (BitErrors), circuit size (ActiveGenes, per-function breakdown), circuit
// depth (MaxGateDelays), and how many cycles it has survived unmutated
// (GenomeAge).
type PerfData struct {
	BitErrors     uint32
	ActiveGenes   uint32
	MaxGateDelays uint32
	GenomeAge     uint32
	FunctionCount [gene.FnXNOR + 1]uint32
}

func (p *PerfData) reset() {
	p.BitErrors = 0
	p.ActiveGenes = 0
	p.MaxGateDelays = 0
	for i := range p.FunctionCount {
		p.FunctionCount[i] = 0
	}
}

func (p *PerfData) updateFunctionCount(fn gene.Function) {
	p.ActiveGenes++
	p.FunctionCount[fn]++
}

// String renders the performance record in a single line, for the periodic
// rank-map dump.
func (p *PerfData) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "errors=%d active=%d depth=%d age=%d [", p.BitErrors, p.ActiveGenes, p.MaxGateDelays, p.GenomeAge)
	for i, fn := range gene.AllFunctions() {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%s=%d", fn, p.FunctionCount[fn])
	}
	b.WriteString("]")
	return b.String()
}

// Genome is a fixed-length array of gates plus its cached performance
// record.
type Genome struct {
	Genes       []gene.Gate
	InputCount  int
	OutputCount int

	perfData      PerfData
	perfDataValid bool
}

// New builds a genome of geneCount gates (including its InputCount input
// taps and OutputCount output taps), randomly wiring every non-tap gate to
// a feed-forward-legal predecessor pair and function via rng.
func New(geneCount, inputCount, outputCount int, rng RNG) *Genome {
	g := &Genome{
		Genes:       make([]gene.Gate, geneCount),
		InputCount:  inputCount,
		OutputCount: outputCount,
	}
	for i := range g.Genes {
		g.Genes[i] = gene.New()
	}
	for i := range g.Genes {
		g.Genes[i].Function = rng.RandomGeneFunction()
		if i != 0 {
			g.Genes[i].AIndex = rng.RandomGeneInputIndex(uint32(i))
			g.Genes[i].BIndex = rng.RandomGeneInputIndex(uint32(i))
		}
	}
	return g
}

// UpdatePerfData re-evaluates the genome against target and refreshes its
// cached performance record.
func (g *Genome) UpdatePerfData(target *truthtable.Table) error {
	if err := target.AssertValid(); err != nil {
		return err
	}
	g.perfData.reset()

	for i := 0; i < target.BitmapCount(); i++ {
		for j := range g.Genes {
			g.Genes[j].Invalidate()
		}
		for j := 0; j < target.InputCount(); j++ {
			g.Genes[j].OverrideBuffer(target.InputBitmap(j, i))
		}

		k := len(g.Genes) - target.OutputCount()
		for j := 0; j < target.OutputCount(); j++ {
			buf := g.Genes[k].Output(g.Genes)
			diff := buf ^ target.OutputBitmap(j, i)
			diff &= target.BitmapMask(i)
			g.perfData.BitErrors += uint32(bits.OnesCount64(diff))
			k++
		}
	}

	for i := target.InputCount(); i < len(g.Genes); i++ {
		if g.Genes[i].Valid() {
			g.perfData.updateFunctionCount(g.Genes[i].Function)
		}
	}

	g.perfData.MaxGateDelays = g.computeMaxGateDelays(target.OutputCount())
	g.perfDataValid = true
	return nil
}

// computeMaxGateDelays walks the gate dependency graph from each output tap
// and returns the deepest chain of predecessors reachable from any of
// them. It is a separate walk after the evaluation pass and does not use
// that pass's valid flags; no truth table evaluation is involved, only a
// depth memo over the existing AIndex/BIndex wiring.
func (g *Genome) computeMaxGateDelays(outputCount int) uint32 {
	depth := make([]int32, len(g.Genes))
	for i := range depth {
		depth[i] = -1
	}
	for i := 0; i < g.InputCount; i++ {
		depth[i] = 0
	}

	var depthOf func(i uint32) int32
	depthOf = func(i uint32) int32 {
		if depth[i] >= 0 {
			return depth[i]
		}
		gt := g.Genes[i]
		d := depthOf(gt.AIndex)
		if gt.Function != gene.FnNOP && gt.Function != gene.FnNOT {
			if bd := depthOf(gt.BIndex); bd > d {
				d = bd
			}
		}
		depth[i] = d + 1
		return depth[i]
	}

	var maxDepth int32
	for k := len(g.Genes) - outputCount; k < len(g.Genes); k++ {
		if d := depthOf(uint32(k)); d > maxDepth {
			maxDepth = d
		}
	}
	return uint32(maxDepth)
}

// GetPerfData returns the genome's performance record, recomputing it
// against target first if stale.
func (g *Genome) GetPerfData(target *truthtable.Table) (PerfData, error) {
	if !g.perfDataValid {
		if err := g.UpdatePerfData(target); err != nil {
			return PerfData{}, err
		}
	}
	return g.perfData, nil
}

// IncrementAge bumps the genome's unmutated-cycle counter. Called once per
// island iteration for every genome, mutated or not; Mutate resets the
// counter back to zero on whichever genome it touches.
func (g *Genome) IncrementAge() {
	g.perfData.GenomeAge++
}

// Mutate applies rng's configured number of point mutations, each
// targeting a uniformly-selected non-zero gate and one of its three
// mutable fields (A predecessor, B predecessor, function). Always resets
// GenomeAge to zero, matching the original's unconditional reset.
func (g *Genome) Mutate(rng RNG) {
	for i := 0; i < rng.MutateCount(); i++ {
		selected := uint32(rng.LocalRand(1, len(g.Genes)-1))
		if mutateGate(&g.Genes[selected], selected, rng) {
			g.perfDataValid = false
		}
	}
	g.perfData.GenomeAge = 0
}

func mutateGate(gt *gene.Gate, selectedIndex uint32, rng RNG) bool {
	switch rng.LocalRand(0, 2) {
	case 0:
		return gt.Mutate(gene.MutateAIndex, rng.RandomGeneInputIndex(selectedIndex), 0, 0)
	case 1:
		return gt.Mutate(gene.MutateBIndex, 0, rng.RandomGeneInputIndex(selectedIndex), 0)
	case 2:
		return gt.Mutate(gene.MutateFunction, 0, 0, rng.RandomGeneFunction())
	default:
		panic("genome: mutation selector out of range")
	}
}

// ParseFrame overwrites every gate from a wire frame's gene list. Panics if
// the frame's gene count doesn't match the genome's length — this is a
// programmer error (mismatched genome length between peers), not a runtime
// condition to recover from.
func (g *Genome) ParseFrame(frame wire.GenomeFrame) {
	if len(frame.Genes) != len(g.Genes) {
		panic(fmt.Sprintf("genome: frame gene count %d does not match genome length %d", len(frame.Genes), len(g.Genes)))
	}
	for i, f := range frame.Genes {
		g.Genes[i] = gene.FromFrame(f)
	}
	g.perfData.GenomeAge = 0
	g.perfDataValid = false
}

// Frame returns the genome's wire representation.
func (g *Genome) Frame() wire.GenomeFrame {
	frames := make([]wire.GeneFrame, len(g.Genes))
	for i := range g.Genes {
		frames[i] = g.Genes[i].Frame()
	}
	return wire.GenomeFrame{
		InputCount:  uint32(g.InputCount),
		OutputCount: uint32(g.OutputCount),
		Genes:       frames,
	}
}

// CopyFrom replaces the receiver's gates with src's. Panics on length
// mismatch, the same programmer-error contract as ParseFrame.
func (g *Genome) CopyFrom(src *Genome) {
	if len(g.Genes) != len(src.Genes) {
		panic(fmt.Sprintf("genome: copy length mismatch: %d != %d", len(g.Genes), len(src.Genes)))
	}
	copy(g.Genes, src.Genes)
	g.perfData.GenomeAge = 0
	g.perfDataValid = false
}

// WriteFile serializes the genome to a plain-text artifact: a header
// giving its dimensions followed by one "gene <function> <aIndex>
// <bIndex>;" line per gate, mirroring the truth table file's
// "key value;" convention so the artifact stays diffable and reparsable.
func (g *Genome) WriteFile(path string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "geneCount %d;\n", len(g.Genes))
	fmt.Fprintf(&b, "inputCount %d;\n", g.InputCount)
	fmt.Fprintf(&b, "outputCount %d;\n", g.OutputCount)
	for _, gt := range g.Genes {
		fmt.Fprintf(&b, "gene %s %d %d;\n", gt.Function, gt.AIndex, gt.BIndex)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
