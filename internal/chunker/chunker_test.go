package chunker

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragcore/pkg/types"
)

func headingLevels(patterns ...string) types.HierarchyLevelSpec {
	spec := make(types.HierarchyLevelSpec, len(patterns))
	for i, p := range patterns {
		spec[i] = []*regexp.Regexp{regexp.MustCompile(p)}
	}
	return spec
}

func sectionsOf(lines ...string) []types.Section {
	out := make([]types.Section, len(lines))
	for i, l := range lines {
		out[i] = types.Section{Text: l}
	}
	return out
}

func chunkTexts(chunks []types.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func buildTexts(t *testing.T, levels types.HierarchyLevelSpec, depth int, lines ...string) []string {
	t.Helper()
	b, err := NewHierarchyBuilder(levels, depth)
	require.NoError(t, err)
	chunks, err := b.Build(context.Background(), sectionsOf(lines...))
	require.NoError(t, err)
	return chunkTexts(chunks)
}

func TestRemoveTag(t *testing.T) {
	assert.Equal(t, "ab", RemoveTag("a@@1\t2.5\t3\t4\t5##b"))
	assert.Equal(t, "plain", RemoveTag("plain"))
	assert.Equal(t, "xy", RemoveTag("x@@2-3\t0\t1\t2\t3##@@4\t1\t1\t1\t1##y"))
}

func TestExtractPositions(t *testing.T) {
	positions, err := ExtractPositions("a@@1-2\t10\t20.5\t30\t40##b@@3\t1\t2\t3\t4##")
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, types.Position{Pages: []int{0, 1}, X0: 10, Y0: 20.5, X1: 30, Y1: 40}, positions[0])
	assert.Equal(t, []int{2}, positions[1].Pages)

	none, err := ExtractPositions("no tags here")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = ExtractPositions("@@1\t2\t3##")
	assert.ErrorIs(t, err, types.ErrMalformedPosition)
}

func TestParseDelimiters(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []string
	}{
		{"single characters", "\n。；", []string{"\n", "。", "；"}},
		{"quoted run sorts first", "\n。`##`；", []string{"##", "\n", "。", "；"}},
		{"longest quoted first", "`ab``abc`.", []string{"abc", "ab", "."}},
		{"duplicates dropped", "..;", []string{".", ";"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDelimiters(tt.spec)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDelimiterPattern(t *testing.T) {
	re := DelimiterPattern([]string{"##", "."})
	require.NotNil(t, re)
	assert.Equal(t, []string{"a", "b", "c"}, re.Split("a##b.c", -1))
	assert.Nil(t, DelimiterPattern(nil))
}

func TestSplitKeep(t *testing.T) {
	assert.Equal(t, []string{"a.", "b.", "c"}, splitKeep("a.b.c", "."))
	assert.Equal(t, []string{"a."}, splitKeep("a.", "."))
	assert.Equal(t, []string{"abc"}, splitKeep("abc", "."))

	// Dots inside a position tag are not cut points
	pieces := splitKeep("x.y@@1\t2.5\t3\t4\t5##z.", ".")
	assert.Equal(t, []string{"x.", "y@@1\t2.5\t3\t4\t5##z."}, pieces)
}

func TestDetectLevels(t *testing.T) {
	levels := headingLevels(`^# `, `^## `)
	got := DetectLevels([]string{"# A", "text1", "## B", "text2", "text3"}, levels)
	assert.Equal(t, []int{0, 2, 1, 2, 2}, got)
}

func TestHierarchy_TwoLevelsSingleChunk(t *testing.T) {
	got := buildTexts(t, headingLevels(`^# `, `^## `), 2,
		"# A", "text1", "## B", "text2", "text3")
	assert.Equal(t, []string{"# A\ntext1\n## B\ntext2\ntext3\n"}, got)
}

func TestHierarchy_AlternatingTopLevel(t *testing.T) {
	got := buildTexts(t, headingLevels(`^L0`), 1,
		"L0 a", "leaf1", "leaf2", "L0 b", "leaf3")
	assert.Equal(t, []string{"L0 a\nleaf1\nleaf2\n", "L0 b\nleaf3\n"}, got)
}

func TestHierarchy_SiblingsRepeatHeading(t *testing.T) {
	got := buildTexts(t, headingLevels(`^# `, `^## `), 2,
		"# A", "## B", "b", "## C", "c")
	assert.Equal(t, []string{"# A\n## B\nb\n", "# A\n## C\nc\n"}, got)
}

func TestHierarchy_DepthTruncationAbsorbsSubtree(t *testing.T) {
	levels := headingLevels(`^# `, `^## `, `^### `)
	lines := []string{"# A", "## B", "x", "### C", "y", "# D"}

	got := buildTexts(t, levels, 1, lines...)
	assert.Equal(t, []string{"# A\n## B\nx\n### C\ny\n", "# D\n"}, got)

	got = buildTexts(t, levels, 3, lines...)
	assert.Equal(t, []string{"# A\n## B\nx\n### C\ny\n", "# D\n"}, got)
}

func TestHierarchy_SubHeadingBeforeTopLevel(t *testing.T) {
	// A level-1 line before any level-0 line goes to the root's own text
	got := buildTexts(t, headingLevels(`^# `, `^## `), 2,
		"## B", "intro", "# A", "body")
	assert.Equal(t, []string{"## B\nintro\n", "# A\nbody\n"}, got)
}

func TestHierarchy_LeadingText(t *testing.T) {
	got := buildTexts(t, headingLevels(`^# `), 1,
		"preface", "# A", "body")
	assert.Equal(t, []string{"preface\n", "# A\nbody\n"}, got)
}

func TestBuildTree_SkippedLevelStaysBelowParent(t *testing.T) {
	lines := []string{"# A", "### C", "### D"}
	levels := headingLevels(`^# `, `^## `, `^### `)
	tree := BuildTree(lines, DetectLevels(lines, levels), levels.LeafLevel())

	// C and D are both children of A
	require.Len(t, tree.nodes[0].children, 1)
	a := tree.nodes[tree.nodes[0].children[0]]
	assert.Len(t, a.children, 2)
	for _, c := range a.children {
		assert.Greater(t, tree.nodes[c].level, a.level)
	}

	assert.Equal(t, [][]int{{0, 1}, {0, 2}}, tree.Flatten(2))
}

func TestBuildTree_LengthMismatchPanics(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		ie, ok := r.(*types.InvariantError)
		require.True(t, ok, "panic value should be *types.InvariantError, got %T", r)
		assert.Equal(t, "BuildTree", ie.Op)
		assert.Contains(t, ie.Error(), "3 lines but 2 detected levels")
	}()
	BuildTree([]string{"a", "b", "c"}, []int{0, 1}, 1)
}

func TestBuildTree_LevelOutOfRangePanics(t *testing.T) {
	assert.Panics(t, func() {
		BuildTree([]string{"a"}, []int{5}, 1)
	})
}

func TestNewHierarchyBuilder_Validation(t *testing.T) {
	_, err := NewHierarchyBuilder(nil, 2)
	assert.ErrorIs(t, err, types.ErrEmptyLevelSpec)

	_, err = NewHierarchyBuilder(headingLevels(`^# `), 0)
	assert.ErrorIs(t, err, types.ErrInvalidDepth)
}

func TestHierarchy_PositionsAndTags(t *testing.T) {
	b, err := NewHierarchyBuilder(headingLevels(`^# `), 1)
	require.NoError(t, err)

	sections := []types.Section{
		{Text: "# Intro@@1\t0\t0\t100\t10##", PositionTag: "@@1\t0\t0\t100\t10##"},
		{Text: "first line", PositionTag: "@@1-2\t0\t10\t100\t20##"},
	}
	chunks, err := b.Build(context.Background(), sections)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "# Intro\nfirst line\n", chunks[0].Text)
	assert.False(t, strings.Contains(chunks[0].Text, "@@"))
	require.Len(t, chunks[0].Positions, 2, "repeated tags are kept once")
	assert.Equal(t, []int{0}, chunks[0].Positions[0].Pages)
	assert.Equal(t, []int{0, 1}, chunks[0].Positions[1].Pages)
}

func TestHierarchy_MalformedTag(t *testing.T) {
	b, err := NewHierarchyBuilder(headingLevels(`^# `), 1)
	require.NoError(t, err)

	_, err = b.Build(context.Background(), []types.Section{
		{Text: "# A", PositionTag: "@@1\t2\t3##"},
	})
	assert.ErrorIs(t, err, types.ErrMalformedSection)
	assert.ErrorIs(t, err, types.ErrMalformedPosition)
}
