package engine

import (
	"github.com/cespare/xxhash/v2"

	"sitekernel/pkg/types"
)

// Hashinate maps a partitioning value onto one of partitionCount
// partitions. Integers map by modulo, strings by xxhash, NULL to 0.
func Hashinate(v types.Value, partitionCount int32) int32 {
	if partitionCount <= 1 || v.IsNull() {
		return 0
	}
	n := int64(partitionCount)
	switch {
	case v.Type().IsInteger():
		p := v.Int() % n
		if p < 0 {
			p += n
		}
		return int32(p)
	case v.Type() == types.VarcharType:
		return int32(xxhash.Sum64String(v.Str()) % uint64(n))
	default:
		return int32(v.Hash() % uint64(n))
	}
}

// IsLocalSite reports whether v hashes to this engine's partition.
func (e *Engine) IsLocalSite(v types.Value) bool {
	return Hashinate(v, e.cfg.Partitions) == e.partitionID
}
