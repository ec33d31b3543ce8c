package genome

import (
	"strings"
	"testing"

	"github.com/distcgp/distcgp/internal/gene"
	"github.com/distcgp/distcgp/internal/truthtable"
)

// fakeRNG is a deterministic stand-in for a subpopulation algorithm,
// sufficient to drive genome construction/mutation in tests without
// depending on internal/ga (which itself depends on this package).
type fakeRNG struct {
	functions []gene.Function
	inputs    []uint32
	locals    []int
	fi, ii, li int
	mutateN   int
}

func (r *fakeRNG) RandomGeneFunction() gene.Function {
	f := r.functions[r.fi%len(r.functions)]
	r.fi++
	return f
}

func (r *fakeRNG) RandomGeneInputIndex(selectedIndex uint32) uint32 {
	v := r.inputs[r.ii%len(r.inputs)]
	r.ii++
	if v >= selectedIndex && selectedIndex > 0 {
		v = selectedIndex - 1
	}
	return v
}

func (r *fakeRNG) LocalRand(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	v := r.locals[r.li%len(r.locals)]
	r.li++
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}

func (r *fakeRNG) MutateCount() int { return r.mutateN }

func notInverter() *fakeRNG {
	return &fakeRNG{
		functions: []gene.Function{gene.FnNAND},
		inputs:    []uint32{0},
		locals:    []int{0, 1, 2},
		mutateN:   1,
	}
}

func andTruthTable(t *testing.T) *truthtable.Table {
	tt, err := truthtable.New(2, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := uint32(0); i < 4; i++ {
		a := i & 1
		b := (i >> 1) & 1
		out := uint32(0)
		if a == 1 && b == 1 {
			out = 1
		}
		if _, err := tt.AddPattern(i, out); err != nil {
			t.Fatalf("AddPattern: %v", err)
		}
	}
	return tt
}

func TestNewGenomeStructure(t *testing.T) {
	rng := notInverter()
	g := New(5, 2, 1, rng)
	if len(g.Genes) != 5 {
		t.Fatalf("expected 5 genes, got %d", len(g.Genes))
	}
	if g.Genes[0].AIndex != 0 || g.Genes[0].BIndex != 0 {
		t.Fatalf("gene 0 must not have input indices set, got a=%d b=%d", g.Genes[0].AIndex, g.Genes[0].BIndex)
	}
}

func TestUpdatePerfDataPerfectAND(t *testing.T) {
	g := &Genome{
		Genes: []gene.Gate{
			gene.New(), // input 0
			gene.New(), // input 1
			{Function: gene.FnAND, AIndex: 0, BIndex: 1}, // output
		},
		InputCount:  2,
		OutputCount: 1,
	}
	tt := andTruthTable(t)
	if err := g.UpdatePerfData(tt); err != nil {
		t.Fatalf("UpdatePerfData: %v", err)
	}
	if g.perfData.BitErrors != 0 {
		t.Fatalf("expected zero bit errors for a perfect AND genome, got %d", g.perfData.BitErrors)
	}
	if g.perfData.ActiveGenes != 1 {
		t.Fatalf("expected 1 active gene, got %d", g.perfData.ActiveGenes)
	}
	if g.perfData.MaxGateDelays != 1 {
		t.Fatalf("expected max gate delay 1, got %d", g.perfData.MaxGateDelays)
	}
}

func TestUpdatePerfDataCountsErrors(t *testing.T) {
	g := &Genome{
		Genes: []gene.Gate{
			gene.New(),
			gene.New(),
			{Function: gene.FnOR, AIndex: 0, BIndex: 1}, // wrong function vs AND target
		},
		InputCount:  2,
		OutputCount: 1,
	}
	tt := andTruthTable(t)
	if err := g.UpdatePerfData(tt); err != nil {
		t.Fatalf("UpdatePerfData: %v", err)
	}
	if g.perfData.BitErrors == 0 {
		t.Fatalf("expected nonzero bit errors for an OR genome against an AND target")
	}
}

func TestMutateResetsAgeAndInvalidatesOnActiveGene(t *testing.T) {
	g := &Genome{
		Genes: []gene.Gate{
			gene.New(),
			gene.New(),
			{Function: gene.FnAND, AIndex: 0, BIndex: 1},
		},
		InputCount:  2,
		OutputCount: 1,
	}
	tt := andTruthTable(t)
	if _, err := g.GetPerfData(tt); err != nil {
		t.Fatalf("GetPerfData: %v", err)
	}
	g.IncrementAge()
	if g.perfData.GenomeAge != 1 {
		t.Fatalf("expected age 1, got %d", g.perfData.GenomeAge)
	}

	rng := &fakeRNG{
		functions: []gene.Function{gene.FnXOR},
		inputs:    []uint32{0},
		locals:    []int{2, 2}, // select gene index 2 (the output gate), mutate target = function
		mutateN:   1,
	}
	g.Mutate(rng)
	if g.perfData.GenomeAge != 0 {
		t.Fatalf("expected age reset to 0 after mutation, got %d", g.perfData.GenomeAge)
	}
	if g.perfDataValid {
		t.Fatalf("expected perf data invalidated after mutating an active gene")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	g := &Genome{
		Genes: []gene.Gate{
			gene.New(),
			{Function: gene.FnNAND, AIndex: 0, BIndex: 0},
		},
		InputCount:  1,
		OutputCount: 1,
	}
	frame := g.Frame()

	other := &Genome{Genes: make([]gene.Gate, 2), InputCount: 1, OutputCount: 1}
	other.ParseFrame(frame)
	if other.Genes[1].Function != gene.FnNAND {
		t.Fatalf("expected parsed function NAND, got %s", other.Genes[1].Function)
	}
}

func TestCopyFromResetsState(t *testing.T) {
	src := &Genome{
		Genes: []gene.Gate{
			gene.New(),
			{Function: gene.FnXOR, AIndex: 0, BIndex: 0},
		},
		InputCount:  1,
		OutputCount: 1,
	}
	dst := &Genome{Genes: make([]gene.Gate, 2), InputCount: 1, OutputCount: 1}
	dst.CopyFrom(src)
	if dst.Genes[1].Function != gene.FnXOR {
		t.Fatalf("copy did not replicate gate state")
	}
	if dst.perfDataValid {
		t.Fatalf("expected perf data invalidated after CopyFrom")
	}
}

func TestPerfDataString(t *testing.T) {
	var p PerfData
	p.BitErrors = 1
	p.updateFunctionCount(gene.FnAND)
	s := p.String()
	if !strings.Contains(s, "AND=1") {
		t.Fatalf("expected function count in output, got %q", s)
	}
}

func TestWriteFileFormat(t *testing.T) {
	g := &Genome{
		Genes: []gene.Gate{
			gene.New(),
			{Function: gene.FnNAND, AIndex: 0, BIndex: 0},
		},
		InputCount:  1,
		OutputCount: 1,
	}
	dir := t.TempDir()
	path := dir + "/genome.op"
	if err := g.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}
