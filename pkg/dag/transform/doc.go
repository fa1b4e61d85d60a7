// Package transform provides the graph passes behind the pure-Go layered
// workflow layout.
//
// The passes run in this order:
//
//  1. [BreakCycles] removes back edges (including self-loops) so the graph
//     can be layered.
//  2. [AssignLayers] places every node in a rank with the longest-path rule.
//  3. [OrderLayers] reorders each rank with barycentre sweeps to reduce
//     edge crossings.
//
// All passes are deterministic: they follow the insertion order of the
// underlying [dag.DAG].
package transform
