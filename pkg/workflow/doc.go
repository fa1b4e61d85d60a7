// Package workflow defines the data model shared by the compiler, the
// layout adapters, the stores and the API.
//
// # Core Types
//
//   - [Node]: a unit of work with a [Kind], display metadata, an advisory
//     [Position], an output schema and a kind-specific payload
//   - [Edge]: a directed connection between two nodes, with optional
//     handles and label
//   - [SourceRef]: a {nodeId, path} pointer into another node's output
//   - [Value]: either a literal string or a [SourceRef]
//   - [RichText]: the editor's rich-text document tree
//   - [Document]: a persisted workflow (metadata, nodes, edges, version)
//
// # References
//
// Source references can only appear in a closed set of fields: url,
// header values, query values, body and outputData sources.
// [Node.VisitRefs] enumerates exactly these fields; every pass that reads or
// rewrites references goes through it.
//
// # Wire Format
//
// Nodes serialize flat, with kind-specific fields next to the common ones:
//
//	{
//	  "id": "fetch", "kind": "http", "name": "Fetch",
//	  "outputSchema": {"type": "object", "properties": {}},
//	  "generatedByAI": true, "runtime": {"isNew": true},
//	  "method": "GET",
//	  "url": {"nodeId": "input", "path": ["url"]}
//	}
package workflow
