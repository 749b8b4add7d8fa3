package symmetry

import (
	"testing"

	"github.com/brensch/symcheck/executor/convert"
	"github.com/stretchr/testify/require"
)

// numbered returns a tensor whose every element is distinct, so any two
// different transforms produce different outputs.
func numbered(c, n int) convert.Tensor {
	t := convert.NewTensor(c, n, n)
	for i := range t.Data {
		t.Data[i] = float32(i + 1)
	}
	return t
}

func TestApply_Rot90CounterClockwise(t *testing.T) {
	// 1 2      2 4
	// 3 4  ->  1 3
	in := convert.Tensor{Channels: 1, Height: 2, Width: 2, Data: []float32{1, 2, 3, 4}}
	require.Equal(t, []float32{2, 4, 1, 3}, Apply(Rot90, in).Data)
	require.Equal(t, []float32{4, 3, 2, 1}, Apply(Rot180, in).Data)
	require.Equal(t, []float32{3, 1, 4, 2}, Apply(Rot270, in).Data)
	require.Equal(t, []float32{1, 3, 2, 4}, Apply(Flip, in).Data)
	require.Equal(t, []float32{3, 4, 1, 2}, Apply(FlipRot90, in).Data)
	require.Equal(t, []float32{4, 2, 3, 1}, Apply(FlipRot180, in).Data)
	require.Equal(t, []float32{2, 1, 4, 3}, Apply(FlipRot270, in).Data)
}

func TestApply_InverseRoundTrip(t *testing.T) {
	in := numbered(3, 5)
	for _, o := range All {
		back := Apply(Inverse(o), Apply(o, in))
		require.Equal(t, in.Data, back.Data, "op %v", o)
	}
}

func TestApply_AllVariantsDistinct(t *testing.T) {
	in := numbered(2, 4)
	vs := Variants(in)
	require.Len(t, vs, 8)
	for i := range vs {
		for j := i + 1; j < len(vs); j++ {
			require.NotEqual(t, vs[i].Data, vs[j].Data, "%v vs %v", All[i], All[j])
		}
	}
	require.Equal(t, in.Data, vs[0].Data)
}

func TestApply_GroupClosure(t *testing.T) {
	// Composing any two symmetries yields another member of the set.
	in := numbered(1, 3)
	vs := Variants(in)
	for _, a := range All {
		for _, b := range All {
			got := Apply(b, Apply(a, in)).Data
			found := false
			for _, v := range vs {
				if equal(v.Data, got) {
					found = true
					break
				}
			}
			require.True(t, found, "%v then %v is not a board symmetry", a, b)
		}
	}
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	in := numbered(1, 3)
	orig := append([]float32(nil), in.Data...)
	for _, o := range All {
		_ = Apply(o, in)
	}
	require.Equal(t, orig, in.Data)

	out := Apply(Identity, in)
	out.Data[0] = -1
	require.Equal(t, orig, in.Data, "identity must copy")
}

func TestApply_ChannelsIndependent(t *testing.T) {
	in := convert.NewTensor(2, 3, 3)
	in.Set(0, 0, 0, 1)
	out := Apply(Rot90, in)
	// Top-left moves to bottom-left under a counter-clockwise turn.
	require.Equal(t, float32(1), out.At(0, 2, 0))
	for _, v := range out.Data[9:] {
		require.Zero(t, v)
	}
}

func TestApply_NonSquarePanics(t *testing.T) {
	require.Panics(t, func() { Apply(Rot90, convert.NewTensor(1, 2, 3)) })
}

func TestOpString(t *testing.T) {
	require.Equal(t, "identity", Identity.String())
	require.Equal(t, "fliprot270", FlipRot270.String())
	require.Equal(t, "Op(9)", Op(9).String())
}

func equal(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
