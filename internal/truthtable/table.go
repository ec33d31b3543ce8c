// Package truthtable parses, represents, and serializes the boolean
// input/output pattern sets that genomes are evolved against.
package truthtable

import (
	"fmt"
	"os"
	"strings"

	"github.com/distcgp/distcgp/internal/bitvec"
)

// Table holds the bit-packed input and output pattern vectors for a
// fitness target, plus the pattern map used to reject conflicting
// redefinitions.
type Table struct {
	inputs  []*bitvec.Vector
	outputs []*bitvec.Vector

	patternIndex map[uint32]uint32 // masked input pattern -> masked output pattern
	order        []uint32          // masked input patterns in insertion order, for GetPattern(index)
}

// New creates an empty table with the given input/output bit widths.
func New(inputCount, outputCount int) (*Table, error) {
	if inputCount == 0 {
		return nil, fmt.Errorf("truthtable: input count must be nonzero")
	}
	if outputCount == 0 {
		return nil, fmt.Errorf("truthtable: output count must be nonzero")
	}

	t := &Table{
		inputs:       make([]*bitvec.Vector, inputCount),
		outputs:      make([]*bitvec.Vector, outputCount),
		patternIndex: make(map[uint32]uint32),
	}
	for i := range t.inputs {
		t.inputs[i] = bitvec.New(0)
	}
	for i := range t.outputs {
		t.outputs[i] = bitvec.New(0)
	}
	return t, nil
}

// InputCount returns the number of input bit-lines.
func (t *Table) InputCount() int { return len(t.inputs) }

// OutputCount returns the number of output bit-lines.
func (t *Table) OutputCount() int { return len(t.outputs) }

// PatternCount returns the number of distinct patterns stored.
func (t *Table) PatternCount() int { return len(t.order) }

// BitmapCount returns the number of 64-bit lanes backing each pattern
// vector.
func (t *Table) BitmapCount() int {
	if len(t.inputs) == 0 {
		return 0
	}
	return t.inputs[0].LaneCount()
}

// AddPattern adds an (input, output) pattern pair, masking both to the
// table's bit widths. Re-adding an identical pattern is tolerated and
// returns a non-empty warning string; adding a conflicting output for an
// already-seen input pattern is an error.
func (t *Table) AddPattern(iPattern, oPattern uint32) (warning string, err error) {
	inMask := uint32(1)<<uint(len(t.inputs)) - 1
	outMask := uint32(1)<<uint(len(t.outputs)) - 1
	iMasked := iPattern & inMask
	oMasked := oPattern & outMask

	if existing, ok := t.patternIndex[iMasked]; ok {
		if existing != oMasked {
			return "", fmt.Errorf("truthtable: conflicting pattern for input %d: have %d, got %d", iMasked, existing, oMasked)
		}
		return fmt.Sprintf("duplicate pattern [%d:%d], definition ignored", iPattern, oPattern), nil
	}

	for i := range t.inputs {
		t.inputs[i].AppendBit(iMasked&(1<<uint(i)) != 0)
	}
	for i := range t.outputs {
		t.outputs[i].AppendBit(oMasked&(1<<uint(i)) != 0)
	}

	t.patternIndex[iMasked] = oMasked
	t.order = append(t.order, iMasked)
	return "", nil
}

// AssertValid verifies internal consistency: every input/output vector has
// the same length, and the table is non-empty.
func (t *Table) AssertValid() error {
	if len(t.inputs) == 0 {
		return fmt.Errorf("truthtable: table contains no input vectors")
	}
	if len(t.outputs) == 0 {
		return fmt.Errorf("truthtable: table contains no output vectors")
	}

	patternLen := t.inputs[0].Len()
	for i, v := range t.inputs {
		if v.Len() != patternLen {
			return fmt.Errorf("truthtable: input vector %d length mismatch: %d != %d", i, v.Len(), patternLen)
		}
	}
	for i, v := range t.outputs {
		if v.Len() != patternLen {
			return fmt.Errorf("truthtable: output vector %d length mismatch: %d != %d", i, v.Len(), patternLen)
		}
	}
	if patternLen == 0 {
		return fmt.Errorf("truthtable: table is empty")
	}
	return nil
}

// GetPattern returns the masked (input, output) bitmap pair for the
// pattern at the given insertion index. LSB corresponds to input/output 0.
func (t *Table) GetPattern(index int) (input, output uint32) {
	for i, v := range t.inputs {
		if v.Bit(index) {
			input |= 1 << uint(i)
		}
	}
	for i, v := range t.outputs {
		if v.Bit(index) {
			output |= 1 << uint(i)
		}
	}
	return input, output
}

// InputBitmap returns lane bitmapIndex of input line inputIndex's packed
// vector.
func (t *Table) InputBitmap(inputIndex, bitmapIndex int) uint64 {
	return t.inputs[inputIndex].Lane(bitmapIndex)
}

// OutputBitmap returns lane bitmapIndex of output line outputIndex's packed
// vector.
func (t *Table) OutputBitmap(outputIndex, bitmapIndex int) uint64 {
	return t.outputs[outputIndex].Lane(bitmapIndex)
}

// BitmapMask returns the mask of valid bits within the given lane, shared
// across every input/output vector since they're all the same length.
func (t *Table) BitmapMask(bitmapIndex int) uint64 {
	full := t.inputs[0]
	// Derive the mask by probing an all-ones lane copy; inputs[0] already
	// enforces masking on write, so reading back an all-ones write reveals
	// exactly the valid-bit mask.
	probe := full.Clone()
	probe.SetLane(bitmapIndex, ^uint64(0))
	return probe.Lane(bitmapIndex)
}

// WriteFile serializes the table to path using the given radix (2 or 16).
// A radix of 0 defaults to binary, matching the original format's default
// writer.
func (t *Table) WriteFile(path string, radix int) error {
	if radix == 0 {
		radix = 2
	}

	var b strings.Builder
	fmt.Fprintf(&b, "radix %d;\n", radix)
	fmt.Fprintf(&b, "iCount %d;\n", t.InputCount())
	fmt.Fprintf(&b, "oCount %d;\n", t.OutputCount())

	for i := 0; i < t.PatternCount(); i++ {
		in, out := t.GetPattern(i)
		b.WriteString("pattern ")
		writeBits(&b, in, t.InputCount(), radix)
		b.WriteString(":")
		writeBits(&b, out, t.OutputCount(), radix)
		b.WriteString(";\n")
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeBits(b *strings.Builder, value uint32, width, radix int) {
	if radix == 2 {
		for j := width - 1; j >= 0; j-- {
			if value&(1<<uint(j)) != 0 {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
		return
	}
	// Hex (or other small radix) rendering, nibble-aligned, matching the
	// parser's accepted digit set.
	const digits = "0123456789abcdef"
	nibbles := (width + 3) / 4
	for j := nibbles - 1; j >= 0; j-- {
		shift := uint(j * 4)
		b.WriteByte(digits[(value>>shift)&0xf])
	}
}
