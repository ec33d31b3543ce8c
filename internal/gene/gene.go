// Package gene implements a single Cartesian Genetic Programming gate: a
// boolean function of up to two predecessor signals, evaluated over 64
// patterns at a time via 64-bit-wide bitwise operations.
package gene

import (
	"fmt"

	"github.com/distcgp/distcgp/internal/wire"
)

// Function identifies the boolean operation a gate performs.
type Function uint8

const (
	FnNOP Function = iota
	FnNOT
	FnAND
	FnNAND
	FnOR
	FnNOR
	FnXOR
	FnXNOR
	functionCount
)

func (f Function) String() string {
	switch f {
	case FnNOP:
		return "NOP"
	case FnNOT:
		return "NOT"
	case FnAND:
		return "AND"
	case FnNAND:
		return "NAND"
	case FnOR:
		return "OR"
	case FnNOR:
		return "NOR"
	case FnXOR:
		return "XOR"
	case FnXNOR:
		return "XNOR"
	default:
		return fmt.Sprintf("Function(%d)", uint8(f))
	}
}

// AllFunctions lists every recognised gate function, in declaration order.
func AllFunctions() []Function {
	return []Function{FnNOP, FnNOT, FnAND, FnNAND, FnOR, FnNOR, FnXOR, FnXNOR}
}

// Count returns the number of gate functions recognised.
func Count() int { return int(functionCount) }

// Gate is a single gene: a function plus two predecessor indices into the
// owning genome's gene array, and a memoized 64-bit output buffer.
type Gate struct {
	Function Function
	AIndex   uint32
	BIndex   uint32

	buf      uint64
	bufValid bool
}

// New returns a zero-valued NOP gate, matching the original's
// zero-initializing default constructor.
func New() Gate {
	return Gate{Function: FnNOP}
}

// FromFrame constructs a gate from its wire representation. The output
// buffer starts invalid, forcing re-evaluation.
func FromFrame(f wire.GeneFrame) Gate {
	return Gate{Function: Function(f.Function), AIndex: f.AIndex, BIndex: f.BIndex}
}

// Frame returns the gate's wire representation.
func (g *Gate) Frame() wire.GeneFrame {
	return wire.GeneFrame{Function: uint8(g.Function), AIndex: g.AIndex, BIndex: g.BIndex}
}

// Invalidate marks the memoized output as stale.
func (g *Gate) Invalidate() { g.bufValid = false }

// Valid reports whether the memoized output buffer is current.
func (g *Gate) Valid() bool { return g.bufValid }

// Output returns the gate's memoized 64-bit output, recursively evaluating
// its predecessors through genes if the buffer is stale. genes is the full
// gene array of the owning genome, including its input-tap pseudo-genes at
// the low indices.
func (g *Gate) Output(genes []Gate) uint64 {
	if g.bufValid {
		return g.buf
	}

	aInput := genes[g.AIndex].Output(genes)
	var bInput uint64
	if g.Function != FnNOP && g.Function != FnNOT {
		bInput = genes[g.BIndex].Output(genes)
	}

	g.buf = compute(g.Function, aInput, bInput)
	g.bufValid = true
	return g.buf
}

func compute(fn Function, a, b uint64) uint64 {
	switch fn {
	case FnNOP:
		return a
	case FnNOT:
		return ^a
	case FnAND:
		return a & b
	case FnNAND:
		return ^(a & b)
	case FnOR:
		return a | b
	case FnNOR:
		return ^(a | b)
	case FnXOR:
		return a ^ b
	case FnXNOR:
		return ^(a ^ b)
	default:
		panic(fmt.Sprintf("gene: unrecognised gate function %d during evaluation", fn))
	}
}

// OverrideBuffer force-sets the memoized output buffer, used to seed the
// input-tap pseudo-genes at the start of genome evaluation.
func (g *Gate) OverrideBuffer(value uint64) {
	g.buf = value
	g.bufValid = true
}

// MutationTarget identifies which field of a gate a mutation touched.
type MutationTarget int

const (
	MutateAIndex MutationTarget = iota
	MutateBIndex
	MutateFunction
)

// Mutate overwrites one randomly chosen field of the gate — its A
// predecessor, its B predecessor, or its function — using the supplied
// values, and reports whether the gate's memoized output had been valid
// before the mutation (the caller uses this to decide whether downstream
// dependents need invalidating too).
func (g *Gate) Mutate(target MutationTarget, newAIndex, newBIndex uint32, newFunction Function) (wasValid bool) {
	wasValid = g.bufValid
	switch target {
	case MutateAIndex:
		g.AIndex = newAIndex
	case MutateBIndex:
		g.BIndex = newBIndex
	case MutateFunction:
		g.Function = newFunction
	default:
		panic(fmt.Sprintf("gene: unrecognised mutation target %d", target))
	}
	g.bufValid = false
	return wasValid
}
