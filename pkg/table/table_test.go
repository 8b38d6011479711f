package table

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/tuple"
	"sitekernel/pkg/types"
	"sitekernel/pkg/undo"
)

func newWarehouse(t *testing.T) *Persistent {
	t.Helper()
	schema, err := tuple.NewSchema([]tuple.Column{
		{Name: "w_id", Type: types.IntegerType},
		{Name: "w_name", Type: types.VarcharType, Nullable: true},
	})
	require.NoError(t, err)
	p, err := NewPersistent(1, "warehouse", schema, []int{0})
	require.NoError(t, err)
	return p
}

func row(id int32, name string) tuple.Tuple {
	return tuple.Tuple{types.NewInteger(id), types.NewVarchar(name)}
}

func names(p *Persistent) []string {
	var out []string
	for _, r := range p.Rows() {
		out = append(out, r[1].Str())
	}
	return out
}

// ============================================================================
// Persistent table mutations and their undo
// ============================================================================

func TestPersistent_InsertRejectsDuplicateKey(t *testing.T) {
	p := newWarehouse(t)
	q := undo.NewSentinel()

	_, err := p.Insert(row(1, "a"), q)
	require.NoError(t, err)

	_, err = p.Insert(row(1, "b"), q)
	assert.True(t, errors.Is(err, dberror.ErrConstraintViolation))
	assert.Equal(t, 1, p.RowCount())
}

func TestPersistent_UndoRestoresPriorState(t *testing.T) {
	p := newWarehouse(t)
	log := undo.NewLog()

	q1, err := log.Generate(1)
	require.NoError(t, err)
	_, err = p.Insert(row(1, "a"), q1)
	require.NoError(t, err)
	_, err = p.Insert(row(2, "b"), q1)
	require.NoError(t, err)

	q2, err := log.Generate(2)
	require.NoError(t, err)
	require.NoError(t, p.Update(0, row(1, "a2"), q2))
	require.NoError(t, p.Delete(1, q2))
	_, err = p.Insert(row(3, "c"), q2)
	require.NoError(t, err)

	q3, err := log.Generate(3)
	require.NoError(t, err)
	require.NoError(t, p.Update(0, row(9, "a3"), q3))

	assert.Equal(t, []string{"a3", "c"}, names(p))

	_, err = log.Undo(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names(p))

	// keys are restored too
	_, err = p.Insert(row(2, "dup"), undo.NewSentinel())
	assert.Error(t, err)
	_, err = p.Insert(row(9, "free again"), undo.NewSentinel())
	assert.NoError(t, err)
}

func TestPersistent_UpdateKeyConflict(t *testing.T) {
	p := newWarehouse(t)
	q := undo.NewSentinel()
	_, err := p.Insert(row(1, "a"), q)
	require.NoError(t, err)
	_, err = p.Insert(row(2, "b"), q)
	require.NoError(t, err)

	err = p.Update(1, row(1, "b"), q)
	assert.True(t, errors.Is(err, dberror.ErrConstraintViolation))
}

func TestPersistent_TruncateIsUndoable(t *testing.T) {
	p := newWarehouse(t)
	log := undo.NewLog()
	q, err := log.Generate(1)
	require.NoError(t, err)
	for i := int32(0); i < 3; i++ {
		_, err := p.Insert(row(i, "x"), undo.NewSentinel())
		require.NoError(t, err)
	}

	require.NoError(t, p.Truncate(q))
	assert.Equal(t, 0, p.RowCount())

	_, err = log.Undo(1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.RowCount())
}

// ============================================================================
// Temp tables and limits
// ============================================================================

func TestTemp_LimitPerRun(t *testing.T) {
	schema := tuple.MustSchema("v", types.BigIntType)
	limits := NewTempLimits(0, 30)
	tmp := NewTemp(schema, limits)

	r := tuple.Tuple{types.NewBigInt(1)} // 12 bytes with its size prefix
	require.NoError(t, tmp.Insert(r))
	require.NoError(t, tmp.Insert(r))
	err := tmp.Insert(r)
	assert.True(t, errors.Is(err, dberror.ErrTempTableMemoryExceeded))

	limits.Reset()
	tmp = NewTemp(schema, limits)
	assert.NoError(t, tmp.Insert(r), "the counter starts over every run")
	assert.Equal(t, int64(36), limits.Peak())

	tmp.Clear()
	assert.Equal(t, int64(0), limits.Allocated())
}

// ============================================================================
// Serialization
// ============================================================================

func TestAppendTable_Layout(t *testing.T) {
	schema := tuple.MustSchema("modified_tuples", types.BigIntType)
	tmp := NewTemp(schema, nil)
	require.NoError(t, tmp.Insert(tuple.Tuple{types.NewBigInt(3)}))

	buf, err := AppendTable(nil, tmp)
	require.NoError(t, err)

	want := []byte{
		0, 0, 0, 43, // table size
		0,           // status
		0, 0, 0, 22, // header size
		0, 1, // column count
		6,           // BIGINT
		0, 0, 0, 15, // name length
	}
	want = append(want, "modified_tuples"...)
	want = append(want,
		0, 0, 0, 1, // row count
		0, 0, 0, 8, // row size
		0, 0, 0, 0, 0, 0, 0, 3,
	)
	assert.Equal(t, want, buf)
}

func TestDecodeTable_RoundTripsThroughAppend(t *testing.T) {
	p := newWarehouse(t)
	_, err := p.Insert(row(1, "a"), undo.NewSentinel())
	require.NoError(t, err)
	_, err = p.Insert(tuple.Tuple{types.NewInteger(2), types.Null(types.VarcharType)}, undo.NewSentinel())
	require.NoError(t, err)

	buf, err := AppendTable([]byte{0xAA}, p)
	require.NoError(t, err)

	tmp, n, err := DecodeTable(buf[1:])
	require.NoError(t, err)
	assert.Equal(t, len(buf)-1, n)
	assert.True(t, tmp.Schema().Equals(p.Schema()))
	require.Equal(t, 2, tmp.RowCount())
	assert.True(t, tmp.Rows()[1][1].IsNull())
}

func TestDecodeTable_Truncated(t *testing.T) {
	_, _, err := DecodeTable([]byte{0, 0, 0, 9, 0})
	assert.Error(t, err)
}
