// Package dependency routes intermediate result tables between the
// fragments of one batch.
//
// A producer fragment publishes its output table under a dependency id and
// a later consumer in the same batch takes it. Each id holds at most one
// pending table, and a table is handed out exactly once.
package dependency

import (
	"sort"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/logging"
	"sitekernel/pkg/table"
)

// NoDependency marks an invocation that neither consumes nor produces a
// dependency.
const NoDependency int32 = -1

// Source supplies dependencies produced outside this engine, such as the
// collected outputs of other partitions. Fetch returns nil when it has
// nothing for id.
type Source interface {
	Fetch(id int32) (*table.Temp, error)
}

// Router holds the pending tables of the current batch. Not safe for
// concurrent use.
type Router struct {
	pending map[int32]*table.Temp
	source  Source
}

func NewRouter() *Router {
	return &Router{pending: make(map[int32]*table.Temp)}
}

// SetSource installs the external fallback consulted when Take misses. A
// nil source removes it.
func (r *Router) SetSource(s Source) { r.source = s }

func (r *Router) Source() Source { return r.source }

// Publish registers t as the pending table for id.
func (r *Router) Publish(id int32, t *table.Temp) error {
	if _, ok := r.pending[id]; ok {
		return dberror.New(dberror.ErrCategoryDependency, dberror.CodeDuplicateDependency,
			"dependency already published").
			WithDetail("dependency %d has an unconsumed table", id).
			At("Publish", "DependencyRouter")
	}
	r.pending[id] = t
	return nil
}

// Take removes and returns the pending table for id, asking the external
// source when nothing was published locally.
func (r *Router) Take(id int32) (*table.Temp, error) {
	if t, ok := r.pending[id]; ok {
		delete(r.pending, id)
		return t, nil
	}
	if r.source != nil {
		t, err := r.source.Fetch(id)
		if err != nil {
			return nil, dberror.Wrap(err, dberror.CodeMissingDependency, "Take", "DependencyRouter")
		}
		if t != nil {
			return t, nil
		}
	}
	return nil, dberror.New(dberror.ErrCategoryDependency, dberror.CodeMissingDependency,
		"dependency not available").
		WithDetail("dependency %d was never published in this batch", id).
		WithHint("run the producing fragment earlier in the same batch").
		At("Take", "DependencyRouter")
}

// Pending lists the ids still waiting for a consumer, sorted.
func (r *Router) Pending() []int32 {
	ids := make([]int32, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reset discards all pending tables. Called at the start of every batch.
func (r *Router) Reset() {
	if len(r.pending) > 0 {
		logging.WithComponent("dependency").Debug("discarding pending dependencies",
			"count", len(r.pending))
	}
	clear(r.pending)
}

// Len is the number of pending tables.
func (r *Router) Len() int { return len(r.pending) }
