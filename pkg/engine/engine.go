package engine

import (
	"errors"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"sitekernel/pkg/catalog"
	"sitekernel/pkg/config"
	"sitekernel/pkg/dberror"
	"sitekernel/pkg/dependency"
	"sitekernel/pkg/execution"
	"sitekernel/pkg/fragcache"
	"sitekernel/pkg/logging"
	"sitekernel/pkg/params"
	"sitekernel/pkg/stats"
	"sitekernel/pkg/table"
	"sitekernel/pkg/undo"
	"sitekernel/pkg/wire"
)

// NoUndoToken passed to SetUndoToken means "no transaction" and is ignored.
const NoUndoToken int64 = math.MaxInt64

// State is the invocation state of the engine.
type State int

const (
	StateIdle State = iota
	StateParamsBound
	StateResolved
	StateRunning
	StateResultReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateParamsBound:
		return "PARAMS_BOUND"
	case StateResolved:
		return "RESOLVED"
	case StateRunning:
		return "RUNNING"
	case StateResultReady:
		return "RESULT_READY"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Option customizes an engine at construction.
type Option func(*Engine)

// WithSink adds a statistics sink next to the engine's in-memory counters.
func WithSink(s stats.Sink) Option {
	return func(e *Engine) { e.sink = stats.Multi{e.counters, s} }
}

// WithHooks installs the streaming and export collaborator.
func WithHooks(h StreamHooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// WithDependencySource installs the fallback consulted for dependencies not
// published on this engine.
func WithDependencySource(s dependency.Source) Option {
	return func(e *Engine) { e.router.SetSource(s) }
}

// Engine runs plan fragments for one partition.
type Engine struct {
	id          uuid.UUID
	cfg         config.EngineConfig
	partitionID int32
	log         *slog.Logger

	catalog  *catalog.Catalog
	cache    *fragcache.Cache
	undoLog  *undo.Log
	current  *undo.Quantum
	sentinel *undo.Quantum
	router   *dependency.Router
	params   *params.Set
	hooks    StreamHooks

	result    *wire.Output
	exception *wire.Output

	counters *stats.Counters
	sink     stats.Sink

	state          State
	busy           bool
	faulted        error
	tuplesModified int64
	dirty          bool
}

// New creates an engine for one partition. Buffers default to the sizes in
// cfg until SetBuffers lends caller-owned ones.
//
// Parameters:
//   - cfg: identity and limits shared by the cluster
//   - partitionID: the partition this engine serves
//   - opts: optional sink, hooks and dependency source
func New(cfg config.EngineConfig, partitionID int32, opts ...Option) *Engine {
	e := &Engine{
		id:          uuid.New(),
		cfg:         cfg,
		partitionID: partitionID,
		catalog:     catalog.New(),
		undoLog:     undo.NewLog(),
		sentinel:    undo.NewSentinel(),
		router:      dependency.NewRouter(),
		params:      params.NewSet(cfg.MaxParamCount),
		hooks:       NopHooks{},
		result:      wire.NewOutput(make([]byte, max(cfg.ResultBufferSize, 0))),
		exception:   wire.NewOutput(make([]byte, max(cfg.ExceptionBufferSize, 0))),
		counters:    stats.NewCounters(),
	}
	e.sink = e.counters
	for _, opt := range opts {
		opt(e)
	}

	weigh := fragcache.EntryWeight
	if cfg.PlanCacheWeigh == "bytes" {
		weigh = fragcache.PlanBytes
	}
	e.cache = fragcache.New(e.buildVector, weigh, e.sink)

	e.log = logging.WithSite(cfg.SiteID, partitionID).With("engine_id", e.id.String())
	e.log.Info("engine initialized",
		"cluster_index", cfg.ClusterIndex,
		"host_id", cfg.HostID,
		"hostname", cfg.Hostname,
		"partitions", cfg.Partitions,
		"temp_table_memory_limit", cfg.TempTableMemoryLimit)
	return e
}

func (e *Engine) buildVector(id int64, raw []byte) (*execution.Vector, error) {
	limits := table.NewTempLimits(e.cfg.TempTableLogThreshold, e.cfg.TempTableMemoryLimit)
	return execution.NewVector(id, raw, e.catalog, limits)
}

func (e *Engine) ID() uuid.UUID { return e.id }

func (e *Engine) PartitionID() int32 { return e.partitionID }

func (e *Engine) SiteID() int64 { return e.cfg.SiteID }

func (e *Engine) Config() config.EngineConfig { return e.cfg }

// Catalog exposes the resident tables. Mutating them bypasses the undo log.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// State is the state the last invocation ended in.
func (e *Engine) State() State { return e.state }

// Faulted returns the error that faulted the engine, or nil.
func (e *Engine) Faulted() error { return e.faulted }

// TuplesModified is the number of rows changed since the current batch
// started.
func (e *Engine) TuplesModified() int64 { return e.tuplesModified }

// DirtyBatch reports whether any fragment of the current batch changed a
// persistent table.
func (e *Engine) DirtyBatch() bool { return e.dirty }

// CurrentUndoToken returns the token of the armed quantum.
func (e *Engine) CurrentUndoToken() (int64, bool) {
	if e.current == nil {
		return 0, false
	}
	return e.current.Token(), true
}

// PendingDependencies lists dependency ids published but not yet consumed.
func (e *Engine) PendingDependencies() []int32 { return e.router.Pending() }

// CacheLen is the number of fragments in the plan cache.
func (e *Engine) CacheLen() int { return e.cache.Len() }

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() map[string]float64 { return e.counters.Snapshot() }

// SetBuffers lends the result and exception buffers used by every later
// call. A nil buffer keeps the current one.
func (e *Engine) SetBuffers(result, exception []byte) {
	e.result.Reset(result)
	e.exception.Reset(exception)
}

// ResultBytes returns what the last call wrote into the result buffer.
func (e *Engine) ResultBytes() []byte { return e.result.Bytes() }

// ExceptionBytes returns what the last call wrote into the exception buffer.
func (e *Engine) ExceptionBytes() []byte { return e.exception.Bytes() }

// enter claims the engine for one call.
func (e *Engine) enter(op string) error {
	if e.faulted != nil {
		return dberror.New(dberror.ErrCategoryFatal, dberror.CodeEngineFaulted,
			"engine is faulted").
			WithDetail("faulted by: %v", e.faulted).
			WithHint("call Reset before reusing the engine").
			At(op, "Engine")
	}
	if e.busy {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeEngineBusy,
			"engine is already running a call").
			At(op, "Engine")
	}
	e.busy = true
	return nil
}

func (e *Engine) exit() { e.busy = false }

// checkFatal faults the engine if err is a contract violation.
func (e *Engine) checkFatal(err error) {
	if err == nil || !dberror.IsFatal(err) || e.faulted != nil {
		return
	}
	e.faulted = err
	e.log.Error("engine faulted", "error", err, "code", dberror.CodeOf(err))
	var dbErr *dberror.DBError
	if errors.As(err, &dbErr) {
		e.log.Debug("fault origin", "stack", dbErr.FormatStack())
	}
}

// Reset clears a faulted engine: undo history, pending dependencies and
// the plan cache are dropped, resident tables are kept as they are.
func (e *Engine) Reset() {
	e.undoLog.Clear()
	e.current = nil
	e.router.Reset()
	e.cache.Clear()
	e.params.Clear()
	e.result.Reset(nil)
	e.exception.Reset(nil)
	e.state = StateIdle
	e.busy = false
	e.tuplesModified = 0
	e.dirty = false
	if e.faulted != nil {
		e.log.Warn("faulted engine reset", "fault", e.faulted)
	}
	e.faulted = nil
	e.sink.Set(stats.UndoQuantaHeld, 0)
}
