// Package dag provides the directed graph used by layered workflow layout
// and by the optional acyclicity check.
//
// # Overview
//
// Workflow documents are edited as flat node and edge lists. Layout and
// cycle checks need adjacency, in-degrees and per-layer buckets, which this
// package provides. Unlike the workflow model, a [DAG] keeps only node ids
// and a row (layer) index per node.
//
// Despite its name, a DAG may temporarily hold cycles and self-loops: the
// workflow compiler does not reject them. Use [DAG.Validate] or
// [DAG.FindCycle] to test acyclicity, and transform.BreakCycles to obtain an
// acyclic copy for layering.
//
// # Basic Usage
//
//	g := dag.New()
//	g.AddNode(dag.Node{ID: "input"})
//	g.AddNode(dag.Node{ID: "llm"})
//	g.AddEdge(dag.Edge{From: "input", To: "llm"})
//
// Nodes are returned in insertion order by [DAG.Nodes] so that layouts built
// on top of the graph are deterministic.
package dag
