package fragcache

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitekernel/pkg/catalog"
	"sitekernel/pkg/dberror"
	"sitekernel/pkg/execution"
	"sitekernel/pkg/plan"
	"sitekernel/pkg/stats"
	"sitekernel/pkg/table"
)

// ============================================================================
// Fixtures
// ============================================================================

type harness struct {
	cache   *Cache
	stats   *stats.Counters
	builds  int
	catalog *catalog.Catalog
}

func newHarness(t *testing.T, weigh Weigher) *harness {
	t.Helper()
	c := catalog.New()
	require.NoError(t, c.Apply(catalog.Diff{Additions: []catalog.TableDef{{
		ID:      1,
		Name:    "ITEM",
		Columns: []catalog.ColumnDef{{Name: "I_ID", Type: "INTEGER"}},
	}}}))

	h := &harness{stats: stats.NewCounters(), catalog: c}
	h.cache = New(func(id int64, raw []byte) (*execution.Vector, error) {
		h.builds++
		return execution.NewVector(id, raw, c, table.NewTempLimits(0, 0))
	}, weigh, h.stats)
	return h
}

func scanPlan(limit int) []byte {
	return []byte(fmt.Sprintf(`{"nodes":[{"id":1,"type":"SEQSCAN","table":"ITEM"},
	  {"id":2,"type":"LIMIT","children":[1],"limit":%d}]}`, limit))
}

func (h *harness) load(t *testing.T, raw []byte) (int64, bool) {
	t.Helper()
	id := plan.FragmentID(raw)
	v, hit, _, err := h.cache.Resolve(id, raw)
	require.NoError(t, err)
	require.Equal(t, id, v.ID())
	return id, hit
}

// ============================================================================
// Resolve
// ============================================================================

func TestResolve_Idempotent(t *testing.T) {
	h := newHarness(t, nil)
	raw := scanPlan(5)

	id1, hit1 := h.load(t, raw)
	id2, hit2 := h.load(t, raw)

	assert.Equal(t, id1, id2)
	assert.False(t, hit1)
	assert.True(t, hit2)
	assert.Equal(t, 1, h.builds, "a hit must not rebuild the vector")
	assert.Equal(t, 1, h.cache.Len())
	assert.Equal(t, 1.0, h.stats.Get(stats.PlanCacheHits))
	assert.Equal(t, 1.0, h.stats.Get(stats.PlanCacheMisses))
}

func TestResolve_ParseErrorLeavesCacheUntouched(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t, scanPlan(1))

	raw := []byte(`{"nodes":[{"id":1,"type":"SEQSCAN","table":"NOPE"}]}`)
	_, hit, size, err := h.cache.Resolve(plan.FragmentID(raw), raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dberror.ErrUnknownTable))
	assert.False(t, hit)
	assert.Equal(t, int64(1), size)
	assert.Equal(t, 1, h.cache.Len())
	assert.False(t, h.cache.Contains(plan.FragmentID(raw)))
}

func TestGet_UnknownFragment(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.cache.Get(42)
	assert.True(t, errors.Is(err, dberror.ErrUnknownFragment))

	id, _ := h.load(t, scanPlan(1))
	v, err := h.cache.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, v.ID())
}

// ============================================================================
// Purge
// ============================================================================

func TestPurge_EvictsLeastRecentlyUsed(t *testing.T) {
	h := newHarness(t, nil)
	a, _ := h.load(t, scanPlan(1))
	b, _ := h.load(t, scanPlan(2))
	c, _ := h.load(t, scanPlan(3))

	assert.Equal(t, 1, h.cache.Purge(2))
	assert.False(t, h.cache.Contains(a))
	assert.Equal(t, []int64{b, c}, h.cache.IDs())

	_, hitB := h.load(t, scanPlan(2))
	_, hitC := h.load(t, scanPlan(3))
	assert.True(t, hitB)
	assert.True(t, hitC)
	assert.Equal(t, 1.0, h.stats.Get(stats.PlanCacheEvictions))
	assert.Equal(t, 2.0, h.stats.Get(stats.PlanCacheEntries))
}

func TestPurge_AccessRefreshesRecency(t *testing.T) {
	h := newHarness(t, nil)
	a, _ := h.load(t, scanPlan(1))
	b, _ := h.load(t, scanPlan(2))
	h.load(t, scanPlan(1))

	h.cache.Purge(1)
	assert.True(t, h.cache.Contains(a))
	assert.False(t, h.cache.Contains(b))
}

func TestPurge_SkipsPinned(t *testing.T) {
	h := newHarness(t, nil)
	a, _ := h.load(t, scanPlan(1))
	b, _ := h.load(t, scanPlan(2))

	h.cache.Pin(a)
	assert.Equal(t, 1, h.cache.Purge(0))
	assert.True(t, h.cache.Contains(a))
	assert.False(t, h.cache.Contains(b))
	assert.Equal(t, int64(1), h.cache.Size())

	h.cache.Unpin(a)
	h.cache.Unpin(a)
	assert.Equal(t, 1, h.cache.Purge(0))
	assert.Equal(t, 0, h.cache.Len())
	assert.Equal(t, int64(2), h.cache.Evictions())
}

func TestPurge_PlanBytesWeigher(t *testing.T) {
	h := newHarness(t, PlanBytes)
	small := []byte(`{"nodes":[{"id":1,"type":"SEQSCAN","table":"ITEM"}]}`)
	big := scanPlan(1000)

	h.load(t, small)
	h.load(t, big)
	assert.Equal(t, int64(len(small)+len(big)), h.cache.Size())

	h.cache.Purge(int64(len(big)))
	assert.Equal(t, int64(len(big)), h.cache.Size())
	assert.False(t, h.cache.Contains(plan.FragmentID(small)))
}

func TestClear(t *testing.T) {
	h := newHarness(t, nil)
	id, _ := h.load(t, scanPlan(1))
	h.cache.Pin(id)

	h.cache.Clear()
	assert.Equal(t, 0, h.cache.Len())
	assert.Equal(t, int64(0), h.cache.Size())

	_, hit := h.load(t, scanPlan(1))
	assert.False(t, hit)
	assert.Equal(t, 2, h.builds)
}
