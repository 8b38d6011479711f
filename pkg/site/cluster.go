// Package site runs a set of partition engines in one process and
// coordinates fragments that span them.
package site

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"sitekernel/pkg/catalog"
	"sitekernel/pkg/config"
	"sitekernel/pkg/dependency"
	"sitekernel/pkg/engine"
	"sitekernel/pkg/logging"
	"sitekernel/pkg/stats"
	"sitekernel/pkg/table"
	"sitekernel/pkg/types"
	"sitekernel/pkg/wire"
)

// Coordinator is the partition that runs the collecting half of a
// multi-partition fragment pair.
const Coordinator int32 = 0

// Cluster owns one engine per partition. Each engine is driven by at most
// one goroutine at a time; the cluster's methods must not be called
// concurrently with each other.
type Cluster struct {
	engines   []*engine.Engine
	collector *collector
}

// NewCluster creates cfg.Partitions engines. metrics may be nil.
func NewCluster(cfg config.EngineConfig, metrics *stats.Metrics) *Cluster {
	n := max(cfg.Partitions, 1)
	c := &Cluster{collector: newCollector()}
	for p := int32(0); p < n; p++ {
		pc := cfg
		pc.Partitions = n
		pc.SiteID = cfg.SiteID + int64(p)

		var opts []engine.Option
		if metrics != nil {
			opts = append(opts, engine.WithSink(metrics.ForPartition(p)))
		}
		if p == Coordinator {
			opts = append(opts, engine.WithDependencySource(c.collector))
		}
		c.engines = append(c.engines, engine.New(pc, p, opts...))
	}
	logging.WithComponent("Cluster").Info("cluster started", "partitions", n)
	return c
}

func (c *Cluster) Partitions() int { return len(c.engines) }

// Engine returns the engine of partition p.
func (c *Cluster) Engine(p int32) *engine.Engine { return c.engines[p] }

// Route returns the engine whose partition owns v.
func (c *Cluster) Route(v types.Value) *engine.Engine {
	return c.engines[engine.Hashinate(v, int32(len(c.engines)))]
}

// each runs fn on every engine concurrently, one goroutine per engine.
func (c *Cluster) each(ctx context.Context, fn func(ctx context.Context, e *engine.Engine) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range c.engines {
		e := e
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, e); err != nil {
				return fmt.Errorf("partition %d: %w", e.PartitionID(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// LoadCatalog applies the same catalog diff on every partition.
func (c *Cluster) LoadCatalog(ctx context.Context, d catalog.Diff) error {
	return c.each(ctx, func(_ context.Context, e *engine.Engine) error {
		return e.UpdateCatalog(0, d)
	})
}

// LoadFragment loads raw on every partition and returns its id.
func (c *Cluster) LoadFragment(ctx context.Context, raw []byte) (int64, error) {
	ids := make([]int64, len(c.engines))
	err := c.each(ctx, func(_ context.Context, e *engine.Engine) error {
		id, _, _, err := e.LoadFragment(raw)
		ids[e.PartitionID()] = id
		return err
	})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

func (c *Cluster) SetUndoToken(ctx context.Context, token int64) error {
	return c.each(ctx, func(_ context.Context, e *engine.Engine) error {
		return e.SetUndoToken(token)
	})
}

func (c *Cluster) ReleaseUndoToken(ctx context.Context, token int64) error {
	return c.each(ctx, func(_ context.Context, e *engine.Engine) error {
		return e.ReleaseUndoToken(token)
	})
}

func (c *Cluster) UndoUndoToken(ctx context.Context, token int64) error {
	return c.each(ctx, func(_ context.Context, e *engine.Engine) error {
		return e.UndoUndoToken(token)
	})
}

// Tick forwards a periodic tick to every partition.
func (c *Cluster) Tick(now time.Time, lastCommittedTxnID int64) error {
	return c.each(context.Background(), func(_ context.Context, e *engine.Engine) error {
		return e.Tick(now, lastCommittedTxnID)
	})
}

// Quiesce flushes every partition's buffered stream data.
func (c *Cluster) Quiesce(lastCommittedTxnID int64) error {
	return c.each(context.Background(), func(_ context.Context, e *engine.Engine) error {
		return e.Quiesce(lastCommittedTxnID)
	})
}

// Step describes one fragment invocation of a multi-partition transaction.
type Step struct {
	FragmentID int64
	Params     []byte
}

// RunMultiPartition runs producer on every partition concurrently, unions
// the tables they send under depID, and feeds the union to consumer on the
// coordinator partition. It returns the consumer's result table.
func (c *Cluster) RunMultiPartition(ctx context.Context, txnID int64, depID int32, producer, consumer Step) (*table.Temp, error) {
	outputs := make([]*table.Temp, len(c.engines))
	err := c.each(ctx, func(_ context.Context, e *engine.Engine) error {
		out, err := runOne(e, engine.Invocation{
			FragmentID:  producer.FragmentID,
			OutputDepID: depID,
			InputDepID:  dependency.NoDependency,
			Params:      producer.Params,
			TxnID:       txnID,
			First:       true,
		})
		outputs[e.PartitionID()] = out
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := c.collector.add(depID, outputs); err != nil {
		return nil, err
	}
	defer c.collector.drop(depID)

	return runOne(c.engines[Coordinator], engine.Invocation{
		FragmentID:  consumer.FragmentID,
		OutputDepID: dependency.NoDependency,
		InputDepID:  depID,
		Params:      consumer.Params,
		TxnID:       txnID,
		First:       true,
		Last:        true,
	})
}

// RunSinglePartition runs one fragment as a whole batch on the partition
// that owns key.
func (c *Cluster) RunSinglePartition(key types.Value, txnID int64, step Step) (*table.Temp, error) {
	inv := engine.NewInvocation(step.FragmentID, txnID, step.Params)
	return runOne(c.Route(key), inv)
}

// runOne executes inv and decodes the single result table it produced.
func runOne(e *engine.Engine, inv engine.Invocation) (*table.Temp, error) {
	if st := e.ExecuteQuery(inv); st != engine.StatusSuccess {
		ex, err := wire.ReadException(e.ExceptionBytes())
		if err != nil {
			return nil, err
		}
		if ex == nil {
			return nil, fmt.Errorf("fragment %d failed without an exception", inv.FragmentID)
		}
		return nil, ex
	}
	results, err := wire.ReadResults(e.ResultBytes())
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("fragment %d produced no result", inv.FragmentID)
	}
	return results[len(results)-1].Table, nil
}
