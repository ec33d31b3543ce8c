package gene

import "testing"

func buildInput(bits uint64) Gate {
	g := New()
	g.OverrideBuffer(bits)
	return g
}

func TestOutputAND(t *testing.T) {
	genes := []Gate{
		buildInput(0b1100),
		buildInput(0b1010),
		{Function: FnAND, AIndex: 0, BIndex: 1},
	}
	got := genes[2].Output(genes)
	if want := uint64(0b1000); got != want {
		t.Fatalf("AND: got %b want %b", got, want)
	}
}

func TestOutputMemoizes(t *testing.T) {
	genes := []Gate{
		buildInput(0b1111),
		{Function: FnNOT, AIndex: 0},
	}
	first := genes[1].Output(genes)
	genes[0].OverrideBuffer(0) // should have no effect: downstream already cached
	second := genes[1].Output(genes)
	if first != second {
		t.Fatalf("memoized output changed: %b -> %b", first, second)
	}
}

func TestOutputNOPIgnoresB(t *testing.T) {
	genes := []Gate{
		buildInput(0xAAAA),
		{Function: FnNOP, AIndex: 0, BIndex: 99}, // BIndex out of range but must never be touched
	}
	if got := genes[1].Output(genes); got != 0xAAAA {
		t.Fatalf("NOP: got %x", got)
	}
}

func TestComputeAllFunctions(t *testing.T) {
	a, b := uint64(0b1100), uint64(0b1010)
	cases := map[Function]uint64{
		FnNOP:  a,
		FnNOT:  ^a,
		FnAND:  a & b,
		FnNAND: ^(a & b),
		FnOR:   a | b,
		FnNOR:  ^(a | b),
		FnXOR:  a ^ b,
		FnXNOR: ^(a ^ b),
	}
	for fn, want := range cases {
		if got := compute(fn, a, b); got != want {
			t.Fatalf("%s: got %b want %b", fn, got, want)
		}
	}
}

func TestMutateInvalidatesAndReportsPriorState(t *testing.T) {
	g := Gate{Function: FnAND, AIndex: 0, BIndex: 1}
	g.OverrideBuffer(42)

	wasValid := g.Mutate(MutateFunction, 0, 0, FnOR)
	if !wasValid {
		t.Fatalf("expected prior buffer to have been valid")
	}
	if g.Valid() {
		t.Fatalf("expected mutation to invalidate the buffer")
	}
	if g.Function != FnOR {
		t.Fatalf("expected function to be updated to OR, got %s", g.Function)
	}

	wasValid = g.Mutate(MutateAIndex, 7, 0, FnOR)
	if wasValid {
		t.Fatalf("expected prior buffer to already be invalid")
	}
	if g.AIndex != 7 {
		t.Fatalf("expected AIndex to be updated to 7, got %d", g.AIndex)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	g := Gate{Function: FnXNOR, AIndex: 3, BIndex: 5}
	frame := g.Frame()
	back := FromFrame(frame)
	if back.Function != g.Function || back.AIndex != g.AIndex || back.BIndex != g.BIndex {
		t.Fatalf("round trip mismatch: %+v != %+v", back, g)
	}
	if back.Valid() {
		t.Fatalf("expected gate constructed from a frame to start with an invalid buffer")
	}
}
