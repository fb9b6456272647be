package chunker

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/ragcore/pkg/types"
)

// RootLevel is the level of the synthetic root node
const RootLevel = -1

// DetectLevels classifies each line by the first pattern group it matches.
// Lines matching no group get spec.LeafLevel().
func DetectLevels(lines []string, spec types.HierarchyLevelSpec) []int {
	levels := make([]int, len(lines))
	for i, line := range lines {
		levels[i] = detectLevel(strings.TrimSpace(line), spec)
	}
	return levels
}

func detectLevel(line string, spec types.HierarchyLevelSpec) int {
	for level, group := range spec {
		for _, re := range group {
			if re.MatchString(line) {
				return level
			}
		}
	}
	return spec.LeafLevel()
}

// node is a heading line in the tree. Children and leaves are indices into
// the arena and the line list respectively.
type node struct {
	level    int
	line     int
	children []int
	leaves   []int
}

// Tree is a heading hierarchy stored as an arena. Node 0 is the root; its
// leaves hold the lines that precede every heading.
type Tree struct {
	nodes     []node
	leafLevel int
}

// BuildTree arranges lines into a heading tree from their detected levels.
// levels must hold exactly one entry per line, each in [0, leafLevel]; any
// other input is a caller bug and panics with *types.InvariantError.
func BuildTree(lines []string, levels []int, leafLevel int) *Tree {
	if len(lines) != len(levels) {
		panic(&types.InvariantError{
			Op:     "BuildTree",
			Detail: fmt.Sprintf("%d lines but %d detected levels", len(lines), len(levels)),
		})
	}

	t := &Tree{
		nodes:     []node{{level: RootLevel, line: -1}},
		leafLevel: leafLevel,
	}
	for i, m := range levels {
		if m < 0 || m > leafLevel {
			panic(&types.InvariantError{
				Op:     "BuildTree",
				Detail: fmt.Sprintf("line %d has level %d outside [0, %d]", i, m, leafLevel),
			})
		}
		t.insert(i, m)
	}
	return t
}

func (t *Tree) insert(line, m int) {
	switch {
	case m == 0:
		t.addChild(0, m, line)

	case m == t.leafLevel:
		n := t.rightmost()
		t.nodes[n].leaves = append(t.nodes[n].leaves, line)

	case len(t.nodes[0].children) == 0:
		// A sub-heading before any top-level heading is kept as root text
		t.nodes[0].leaves = append(t.nodes[0].leaves, line)

	default:
		cur := 0
		for {
			children := t.nodes[cur].children
			if len(children) == 0 {
				break
			}
			last := children[len(children)-1]
			lastLevel := t.nodes[last].level
			if lastLevel+1 == m {
				cur = last
				break
			}
			if lastLevel >= m {
				break
			}
			cur = last
		}
		t.addChild(cur, m, line)
	}
}

func (t *Tree) addChild(parent, level, line int) {
	t.nodes = append(t.nodes, node{level: level, line: line})
	idx := len(t.nodes) - 1
	t.nodes[parent].children = append(t.nodes[parent].children, idx)
}

// rightmost follows last-child links from the root
func (t *Tree) rightmost() int {
	cur := 0
	for len(t.nodes[cur].children) > 0 {
		children := t.nodes[cur].children
		cur = children[len(children)-1]
	}
	return cur
}

// Flatten closes the tree into paths of line indices, depth first. A path
// ends at a node without children or at depth, in which case everything
// below the node is absorbed into the path in document order. Lines before
// the first heading form a leading path of their own.
func (t *Tree) Flatten(depth int) [][]int {
	depth = max(depth, 1)

	var paths [][]int
	if root := t.nodes[0].leaves; len(root) > 0 {
		paths = append(paths, slices.Clone(root))
	}
	for _, c := range t.nodes[0].children {
		paths = t.walk(c, 1, depth, nil, paths)
	}
	return paths
}

func (t *Tree) walk(idx, level, depth int, path []int, paths [][]int) [][]int {
	n := t.nodes[idx]
	p := slices.Clone(path)
	p = append(p, n.line)
	p = append(p, n.leaves...)

	if len(n.children) == 0 || level == depth {
		for _, c := range n.children {
			p = t.absorb(c, p)
		}
		return append(paths, p)
	}

	for _, c := range n.children {
		paths = t.walk(c, level+1, depth, p, paths)
	}
	return paths
}

func (t *Tree) absorb(idx int, p []int) []int {
	n := t.nodes[idx]
	p = append(p, n.line)
	p = append(p, n.leaves...)
	for _, c := range n.children {
		p = t.absorb(c, p)
	}
	return p
}

// HierarchyBuilder groups sections under their headings and emits one
// chunk per closed path of the heading tree
type HierarchyBuilder struct {
	levels types.HierarchyLevelSpec
	depth  int
	joiner *ImageJoiner
	logger *zap.Logger
}

// NewHierarchyBuilder creates a builder for the given heading levels,
// flattening the tree at depth
func NewHierarchyBuilder(levels types.HierarchyLevelSpec, depth int, opts ...Option) (*HierarchyBuilder, error) {
	if len(levels) == 0 {
		return nil, types.ErrEmptyLevelSpec
	}
	if depth < 1 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInvalidDepth, depth)
	}

	s := newSettings("hierarchy", opts)
	return &HierarchyBuilder{
		levels: levels,
		depth:  depth,
		joiner: s.joiner,
		logger: s.logger,
	}, nil
}

// Build detects heading levels, builds the tree and materializes its paths
func (b *HierarchyBuilder) Build(ctx context.Context, sections []types.Section) ([]types.Chunk, error) {
	lines := make([]string, len(sections))
	for i, sec := range sections {
		lines[i] = RemoveTag(sec.Text)
	}

	tree := BuildTree(lines, DetectLevels(lines, b.levels), b.levels.LeafLevel())
	paths := tree.Flatten(b.depth)

	chunks, err := b.Materialize(ctx, sections, paths)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("built hierarchy chunks",
		zap.Int("sections", len(sections)),
		zap.Int("nodes", len(tree.nodes)-1),
		zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// Materialize renders each path into a chunk. Every referenced line is
// tag-stripped and newline-terminated; positions come from the section tag
// and any tags embedded in its text.
func (b *HierarchyBuilder) Materialize(ctx context.Context, sections []types.Section, paths [][]int) ([]types.Chunk, error) {
	drafts := make([]*draft, 0, len(paths))
	for _, path := range paths {
		d := newDraft()
		for _, i := range path {
			if i < 0 || i >= len(sections) {
				panic(&types.InvariantError{
					Op:     "Materialize",
					Detail: fmt.Sprintf("path references line %d of %d", i, len(sections)),
				})
			}
			sec := sections[i]
			d.text.WriteString(RemoveTag(sec.Text))
			d.text.WriteByte('\n')
			if err := d.positions.add(sec.PositionTag, sec.Text); err != nil {
				return nil, fmt.Errorf("%w: section %d: %w", types.ErrMalformedSection, i, err)
			}
			d.addImage(i, sec.Image)
		}
		drafts = append(drafts, d)
	}
	return materialize(ctx, b.joiner, drafts)
}
