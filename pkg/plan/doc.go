// Package plan decodes serialized plan fragments.
//
// A fragment is a JSON document listing plan nodes by id with the ids of
// their children, plus an optional execute list. Parse validates the graph
// and flattens it into an arena: nodes refer to their children by arena
// index, never by pointer, and ExecuteOrder lists arena indices so that every
// child runs before its parent. The last entry is the root, whose output is
// the fragment's result.
//
//	{
//	  "nodes": [
//	    {"id": 1, "type": "SEQSCAN", "table": "WAREHOUSE",
//	     "predicate": {"type": "COMPARE", "op": ">", "left": {"type": "COLUMN", "name": "W_ID"},
//	                   "right": {"type": "PARAMETER", "index": 0}}},
//	    {"id": 2, "type": "SEND", "children": [1]}
//	  ]
//	}
//
// The fragment id is a hash of the raw bytes, so identical plans share one
// cache entry.
package plan
