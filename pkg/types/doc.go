// Package types provides shared type definitions for the ragcore chunking and retrieval core.
//
// # Core Types
//
// Section is one parsed document region handed over by the parsing collaborator:
//
//	sec := types.Section{
//	    Text:        "Revenue grew 12% year over year",
//	    PositionTag: "@@3\t71.0\t520.5\t102.0\t118.3##",
//	}
//
// Chunk is the retrievable unit produced by the splitter or the hierarchy builder:
//
//	chunk := types.Chunk{
//	    Text:      "# Results\nRevenue grew 12%",
//	    Positions: []types.Position{{Pages: []int{2}, X0: 71, Y0: 520.5, X1: 102, Y1: 118.3}},
//	}
//
// Position values serialise as the [[pages...], x0, y0, x1, y1] tuple the
// downstream store expects:
//
//	b, _ := json.Marshal(chunk.Positions)
//	// [[[2],71,520.5,102,118.3]]
//
// WeightedTerm is a (term, weight) pair produced by the term-weighting engine.
// Weights from one weighting call sum to 1.0.
//
// # Errors
//
// Configuration and data-contract failures are reported with the sentinel
// errors in errors.go. InvariantError signals an upstream bug and is raised
// with panic rather than returned.
package types
