// Package symmetry implements the eight rotations and reflections of a
// square board, applied to encoded feature planes.
package symmetry

import (
	"fmt"

	"github.com/brensch/symcheck/executor/convert"
)

type Op int

const (
	Identity Op = iota
	Rot90
	Rot180
	Rot270
	Flip
	FlipRot90
	FlipRot180
	FlipRot270
)

// All lists every symmetry in the order network batches are built.
var All = [8]Op{Identity, Rot90, Rot180, Rot270, Flip, FlipRot90, FlipRot180, FlipRot270}

var names = [8]string{"identity", "rot90", "rot180", "rot270", "flip", "fliprot90", "fliprot180", "fliprot270"}

func (o Op) String() string {
	if o < 0 || int(o) >= len(names) {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return names[o]
}

// Inverse returns the op that undoes o.
func Inverse(o Op) Op {
	switch o {
	case Rot90:
		return Rot270
	case Rot270:
		return Rot90
	}
	return o
}

// source maps output cell (r, c) of an n x n plane to the input cell it is
// read from. Rotations turn counter-clockwise.
func source(o Op, r, c, n int) (int, int) {
	switch o {
	case Rot90:
		return c, n - 1 - r
	case Rot180:
		return n - 1 - r, n - 1 - c
	case Rot270:
		return n - 1 - c, r
	case Flip:
		return c, r
	case FlipRot90:
		return n - 1 - r, c
	case FlipRot180:
		return n - 1 - c, n - 1 - r
	case FlipRot270:
		return r, n - 1 - c
	}
	return r, c
}

// Apply returns a new tensor with o applied to every channel of t.
// t must have square planes.
func Apply(o Op, t convert.Tensor) convert.Tensor {
	if t.Height != t.Width {
		panic(fmt.Sprintf("symmetry: non-square planes %s", t.Shape()))
	}
	n := t.Height
	out := convert.NewTensor(t.Channels, n, n)
	if o == Identity {
		copy(out.Data, t.Data)
		return out
	}

	plane := n * n
	for ch := 0; ch < t.Channels; ch++ {
		src := t.Data[ch*plane : (ch+1)*plane]
		dst := out.Data[ch*plane : (ch+1)*plane]
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				sr, sc := source(o, r, c, n)
				dst[r*n+c] = src[sr*n+sc]
			}
		}
	}
	return out
}

// Variants returns t under every op in All, in that order.
func Variants(t convert.Tensor) []convert.Tensor {
	out := make([]convert.Tensor, len(All))
	for i, o := range All {
		out[i] = Apply(o, t)
	}
	return out
}
