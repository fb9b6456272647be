// Package chunker assembles parsed document sections into retrievable chunks.
//
// Two strategies are provided. The Splitter packs consecutive sections under
// a token budget, cutting oversized sections at configured delimiters. The
// HierarchyBuilder groups sections under the headings that precede them and
// emits one chunk per closed branch of the heading tree.
//
// # Position Tags
//
// Section text may embed page locations as
//
//	@@<pages>\t<x0>\t<y0>\t<x1>\t<y1>##
//
// where pages is a dash-separated list of one-based page numbers. Tags are
// stripped from chunk text and re-emitted as Chunk.Positions with zero-based
// pages.
//
// # Basic Usage
//
//	s, err := chunker.NewSplitter(types.SplitterConfig{
//	    TokenBudget: 128,
//	    Delimiters:  chunker.ParseDelimiters("\n。；！？"),
//	}, tok, chunker.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	chunks, err := s.SplitSections(ctx, sections)
//
//	levels := types.HierarchyLevelSpec{
//	    {regexp.MustCompile(`^# `)},
//	    {regexp.MustCompile(`^## `)},
//	}
//	b, err := chunker.NewHierarchyBuilder(levels, 2)
//	chunks, err = b.Build(ctx, sections)
//
// # Heading Tree
//
// The tree is an arena of nodes referenced by index. A level-0 line starts a
// new top-level branch; a deeper heading attaches below the rightmost node
// one level up; any other line is body text of the rightmost node. With a
// flatten depth of H, every branch deeper than H is folded into its
// ancestor at depth H.
//
// # Images
//
// Images of the sections in a chunk are stacked vertically. Chunks are
// joined concurrently under a shared semaphore; the first failure cancels
// the rest and fails the whole call.
package chunker
