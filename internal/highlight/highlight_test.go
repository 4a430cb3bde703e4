package highlight

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecompute_BaselineAgainstItselfIsEmpty(t *testing.T) {
	h := New(Graphemes)
	h.SetBaseline("Hello")
	assert.Empty(t, h.Recompute("Hello"))
}

func TestRecompute_DifferingSuffix(t *testing.T) {
	h := New(Graphemes)
	h.SetBaseline("abc")
	assert.Equal(t, []ChangeRange{{Start: 2, End: 3}}, h.Recompute("abd"))
}

func TestRecompute_Insertion(t *testing.T) {
	h := New(Graphemes)
	h.SetBaseline("Hello")
	ranges := h.Recompute("Hello world")
	require.Equal(t, []ChangeRange{{Start: 5, End: 11}}, ranges)
	assert.Equal(t, " world", Slice("Hello world", ranges[0], Graphemes))
}

func TestRecompute_DeletionIsZeroWidth(t *testing.T) {
	h := New(Graphemes)
	h.SetBaseline("Hello world")
	assert.Equal(t, []ChangeRange{{Start: 5, End: 5}}, h.Recompute("Hello"))
}

func TestRecompute_NoBaseline(t *testing.T) {
	h := New(Graphemes)
	assert.Empty(t, h.Recompute("anything"))

	h.SetBaseline("")
	assert.Empty(t, h.Recompute("anything"))

	h.SetBaseline("x")
	h.Reset()
	_, ok := h.Baseline()
	assert.False(t, ok)
	assert.Empty(t, h.Recompute("y"))
}

func TestRecompute_IsPure(t *testing.T) {
	h := New(Graphemes)
	h.SetBaseline("The cat sat")
	first := h.Recompute("The dog sat")
	second := h.Recompute("The dog sat")
	assert.Equal(t, first, second)
	base, ok := h.Baseline()
	require.True(t, ok)
	assert.Equal(t, "The cat sat", base)
}

func TestRecompute_GraphemeOffsets(t *testing.T) {
	// e + combining acute is one grapheme but two runes
	base := "cafe\u0301 noir"
	current := "cafe\u0301 blanc"

	g := Diff(base, current, Graphemes)
	r := Diff(base, current, Runes)
	require.NotEmpty(t, g)
	require.NotEmpty(t, r)
	assert.Equal(t, r[0].Start-1, g[0].Start)
	assert.Equal(t, "blanc", Slice(current, ChangeRange{Start: 5, End: 10}, Graphemes))
}

func TestRecompute_LongTextKeepsCommonCharacters(t *testing.T) {
	base := strings.Repeat("the quick brown fox ", 20)
	current := base + "jumps"
	ranges := Diff(base, current, Runes)
	assert.Equal(t, []ChangeRange{{Start: len(base), End: len(base) + 5}}, ranges)
}

func TestTokenize(t *testing.T) {
	assert.Nil(t, Tokenize("", Graphemes))
	assert.Equal(t, []string{"a", "👍🏽", "b"}, Tokenize("a👍🏽b", Graphemes))
	assert.Len(t, Tokenize("a👍🏽b", Runes), 4)
}

func TestSlice_OutOfRange(t *testing.T) {
	assert.Equal(t, "", Slice("abc", ChangeRange{Start: 2, End: 9}, Runes))
}
