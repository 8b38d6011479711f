package engine

import (
	"sitekernel/pkg/catalog"
	"sitekernel/pkg/dberror"
	"sitekernel/pkg/logging"
	"sitekernel/pkg/table"
)

// LoadCatalog applies a JSON-encoded catalog diff; typically the initial
// set of tables.
func (e *Engine) LoadCatalog(data []byte) error {
	d, err := catalog.ParseDiff(data)
	if err != nil {
		return err
	}
	return e.UpdateCatalog(0, d)
}

// UpdateCatalog atomically installs a diff and invalidates every cached
// fragment, since vectors are bound to the tables they were built against.
func (e *Engine) UpdateCatalog(txnID int64, d catalog.Diff) error {
	if err := e.enter("UpdateCatalog"); err != nil {
		return err
	}
	defer e.exit()

	if err := e.catalog.Apply(d); err != nil {
		return err
	}
	e.cache.Clear()
	logging.WithTxn(txnID).Info("catalog swapped",
		"partition_id", e.partitionID, "version", e.catalog.Version(), "tables", e.catalog.Len())
	return nil
}

// LoadTable bulk-inserts a serialized table into the persistent table with
// the given id. Rows are recorded in the armed quantum, or dropped into the
// sentinel when no transaction is armed. A failed row stops the load and
// leaves the rows before it in place.
func (e *Engine) LoadTable(tableID int32, data []byte, txnID, lastCommittedTxnID int64) error {
	if err := e.enter("LoadTable"); err != nil {
		return err
	}
	defer e.exit()

	target, err := e.catalog.TableByID(tableID)
	if err != nil {
		return err
	}
	src, _, err := table.DecodeTable(data)
	if err != nil {
		return err
	}
	if !src.Schema().Equals(target.Schema()) {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeSchemaMismatch,
			"loaded table does not match target layout").
			WithDetail("target %s is (%s), data is (%s)", target.Name(), target.Schema(), src.Schema()).
			At("LoadTable", "Engine")
	}

	q := e.current
	if q == nil {
		q = e.sentinel
	}
	for _, row := range src.Rows() {
		if _, err := target.Insert(row, q); err != nil {
			return err
		}
	}
	logging.WithTable(target.Name()).Info("table loaded",
		"txn_id", txnID, "last_committed_txn_id", lastCommittedTxnID, "rows", src.RowCount())
	return nil
}

// SerializeTable writes the persistent table with the given id into the
// result buffer, replacing whatever the buffer held.
func (e *Engine) SerializeTable(tableID int32) error {
	if err := e.enter("SerializeTable"); err != nil {
		return err
	}
	defer e.exit()

	t, err := e.catalog.TableByID(tableID)
	if err != nil {
		return err
	}
	e.result.Reset(nil)
	return e.result.WriteTable(t)
}
