// Package execution turns a parsed plan fragment into an executor vector and
// runs it.
//
// Every plan node becomes one executor, bound once against the catalog when
// the vector is built: column names are resolved, expression types are
// inferred and the node's output schema is fixed. Binding failures reject
// the fragment before it reaches the cache.
//
// Executors materialize: each one reads the temp tables produced by its
// children and produces one temp table of its own, in the vector's execute
// order. Temp tables account their size against the vector's TempLimits,
// whose counter is reset at the start of every run.
//
// Executors are looked up through a dispatch table keyed by plan.Kind rather
// than through per-node types.
package execution
