package table

import (
	"sitekernel/pkg/dberror"
	"sitekernel/pkg/logging"
)

// TempLimits bounds the memory temp tables may use during one fragment run.
// The counter is reset at the start of every run; the limits themselves are
// fixed when the executor vector is built.
type TempLimits struct {
	// LogThreshold emits a single warning per run once crossed. 0 disables it.
	LogThreshold int64
	// MemoryLimit fails the run once crossed. 0 means unlimited.
	MemoryLimit int64

	allocated int64
	peak      int64
	warned    bool
}

// NewTempLimits creates limits with the given threshold and ceiling.
func NewTempLimits(logThreshold, memoryLimit int64) *TempLimits {
	return &TempLimits{LogThreshold: logThreshold, MemoryLimit: memoryLimit}
}

// Reset zeroes the per-run counter.
func (l *TempLimits) Reset() {
	l.allocated = 0
	l.warned = false
}

// Allocated returns the bytes reserved in the current run.
func (l *TempLimits) Allocated() int64 { return l.allocated }

// Peak returns the highest Allocated value ever observed.
func (l *TempLimits) Peak() int64 { return l.peak }

// Reserve accounts n more bytes.
func (l *TempLimits) Reserve(n int64) error {
	l.allocated += n
	if l.allocated > l.peak {
		l.peak = l.allocated
	}
	if l.LogThreshold > 0 && !l.warned && l.allocated > l.LogThreshold {
		l.warned = true
		logging.WithComponent("TempLimits").Warn("temp table memory above log threshold",
			"allocated", l.allocated, "threshold", l.LogThreshold, "limit", l.MemoryLimit)
	}
	if l.MemoryLimit > 0 && l.allocated > l.MemoryLimit {
		return dberror.New(dberror.ErrCategoryFragment, dberror.CodeTempTableMemoryExceeded,
			"temp table memory limit exceeded").
			WithDetail("%d bytes allocated, limit %d", l.allocated, l.MemoryLimit).
			WithHint("reduce the size of intermediate results or raise engine.temp_table_memory_limit").
			At("Reserve", "TempLimits")
	}
	return nil
}

// Release gives back n bytes, for example when a temp table is cleared.
func (l *TempLimits) Release(n int64) {
	l.allocated -= n
	if l.allocated < 0 {
		l.allocated = 0
	}
}
