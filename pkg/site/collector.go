package site

import (
	"sitekernel/pkg/dberror"
	"sitekernel/pkg/table"
)

// collector is the coordinator's dependency source: it holds the union of
// every partition's output for a dependency id until the consumer takes it.
type collector struct {
	unions map[int32]*table.Temp
}

func newCollector() *collector {
	return &collector{unions: make(map[int32]*table.Temp)}
}

// add unions the partition outputs. All of them must share one layout.
func (c *collector) add(depID int32, outputs []*table.Temp) error {
	var union *table.Temp
	for p, out := range outputs {
		if out == nil {
			continue
		}
		if union == nil {
			union = table.NewTemp(out.Schema(), nil)
		} else if !union.Schema().Equals(out.Schema()) {
			return dberror.New(dberror.ErrCategoryDependency, dberror.CodeSchemaMismatch,
				"partition outputs disagree on layout").
				WithDetail("partition %d sent (%s), expected (%s)", p, out.Schema(), union.Schema()).
				At("Collect", "Cluster")
		}
		for _, row := range out.Rows() {
			if err := union.Insert(row); err != nil {
				return err
			}
		}
	}
	if union != nil {
		c.unions[depID] = union
	}
	return nil
}

func (c *collector) drop(depID int32) { delete(c.unions, depID) }

// Fetch hands the union to the coordinator engine exactly once.
func (c *collector) Fetch(depID int32) (*table.Temp, error) {
	t, ok := c.unions[depID]
	if !ok {
		return nil, nil
	}
	delete(c.unions, depID)
	return t, nil
}
