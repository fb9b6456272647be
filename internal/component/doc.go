// Package component runs chunking stages under a uniform execution contract.
//
// A Runner invokes a Component with an input map and always returns an
// output map, whatever happens inside the stage:
//
//   - "_created_time" is set when the invocation starts
//   - the stage runs under one timeout (DefaultTimeout unless configured)
//   - on success progress is reported as 1.0 with a completion message
//   - on failure the stage's default output is published under "result"
//     when one is configured, otherwise "_ERROR" holds the message; progress
//     is reported as -1 and the error is logged
//   - "_elapsed_time" (seconds) is always set
//
// Panics inside a stage, including invariant violations raised by the
// hierarchy builder, are recovered at this boundary and reported as failures.
// A timed-out stage is abandoned: its context is cancelled and any output it
// writes afterwards is discarded.
//
// # Basic Usage
//
//	runner := component.NewRunner(
//	    component.WithTimeout(cfg.ComponentTimeout),
//	    component.WithLogger(logger),
//	    component.WithProgress(func(p float64, msg string) { ... }),
//	)
//
//	stage := component.NewSplitterStage(component.SplitterParams{
//	    ChunkTokenSize: 512,
//	    Delimiters:     []string{"\n", "。"},
//	}, tok)
//	out := runner.Invoke(ctx, stage, map[string]any{"sections": sections})
//	if msg, failed := out.Error(); failed {
//	    ...
//	}
//	chunks := out[component.OutputChunks].([]types.Chunk)
package component
