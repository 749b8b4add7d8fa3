package sgf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_PropertiesAndValues(t *testing.T) {
	tree, err := Parse("(;FF[4]GM[1]SZ[9]AB[aa][bb]C[hello \\] world];B[cc];W[dd])")
	require.NoError(t, err)
	require.Len(t, tree.Nodes, 3)

	root := tree.Nodes[0]
	sz, ok := root.Get("SZ")
	require.True(t, ok)
	require.Equal(t, "9", sz)
	require.Equal(t, []string{"aa", "bb"}, root.Values("AB"))

	c, _ := root.Get("C")
	require.Equal(t, "hello ] world", c)

	require.True(t, tree.Nodes[1].Has("B"))
	require.False(t, tree.Nodes[1].Has("W"))
}

func TestParse_WhitespaceAndLowercaseIdents(t *testing.T) {
	tree, err := Parse("\n  ( ; AddBlack [aa] \n SZ [5]\n ;B [bb] )\n")
	require.NoError(t, err)
	require.Equal(t, []string{"aa"}, tree.Nodes[0].Values("AB"))
	require.True(t, tree.Nodes[1].Has("B"))
}

func TestParse_SoftLineBreakRemoved(t *testing.T) {
	tree, err := Parse("(;C[one\\\ntwo])")
	require.NoError(t, err)
	c, _ := tree.Nodes[0].Get("C")
	require.Equal(t, "onetwo", c)
}

func TestParse_MainLineFollowsFirstVariation(t *testing.T) {
	tree, err := Parse("(;SZ[9];B[aa](;W[bb];B[cc])(;W[dd]))")
	require.NoError(t, err)

	main := tree.MainLine()
	require.Len(t, main, 4)
	w, _ := main[2].Get("W")
	require.Equal(t, "bb", w)
	b, _ := main[3].Get("B")
	require.Equal(t, "cc", b)
}

func TestParse_OnlyFirstTreeOfCollection(t *testing.T) {
	tree, err := Parse("(;SZ[9];B[aa])(;SZ[13];B[bb];W[cc])")
	require.NoError(t, err)
	require.Len(t, tree.MainLine(), 2)
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no paren", ";B[aa]"},
		{"no nodes", "()"},
		{"unterminated tree", "(;B[aa]"},
		{"unterminated value", "(;C[oops)"},
		{"missing value", "(;B)"},
		{"junk in tree", "(;B[aa] x)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.in)
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
		})
	}
}
