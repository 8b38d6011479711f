package engine

import (
	"sitekernel/pkg/plan"
)

// LoadFragment makes sure the plan is cached and returns its id, whether it
// was already cached, and the cache size afterwards. Loading the same bytes
// twice yields the same id and a hit.
func (e *Engine) LoadFragment(raw []byte) (int64, bool, int64, error) {
	if err := e.enter("LoadFragment"); err != nil {
		return 0, false, e.cache.Size(), err
	}
	defer e.exit()

	id := plan.FragmentID(raw)
	_, hit, size, err := e.cache.Resolve(id, raw)
	if err != nil {
		e.log.Debug("fragment load failed", "fragment_id", id, "error", err)
		return id, false, size, err
	}
	return id, hit, size, nil
}

// ResizePlanCache evicts least-recently-used fragments until the cache is
// within the configured target size and reports how many were evicted.
func (e *Engine) ResizePlanCache() (int, error) {
	if err := e.enter("ResizePlanCache"); err != nil {
		return 0, err
	}
	defer e.exit()
	return e.cache.Purge(e.cfg.PlanCacheTargetSize), nil
}
