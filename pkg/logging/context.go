package logging

import (
	"log/slog"
)

// WithTxn creates a logger with transaction context.
//
// Example:
//
//	log := logging.WithTxn(inv.TxnID)
//	log.Debug("fragment started", "fragment_id", id)
func WithTxn(txnID int64) *slog.Logger {
	return GetLogger().With("txn_id", txnID)
}

// WithFragment creates a logger scoped to one plan fragment.
func WithFragment(fragmentID int64) *slog.Logger {
	return GetLogger().With("fragment_id", fragmentID)
}

// WithTxnFragment creates a logger with both transaction and fragment context.
//
// Example:
//
//	log := logging.WithTxnFragment(txnID, fragID)
//	log.Info("output published", "dep_id", depID)
func WithTxnFragment(txnID, fragmentID int64) *slog.Logger {
	return GetLogger().With("txn_id", txnID, "fragment_id", fragmentID)
}

// WithBatch creates a logger carrying the batch boundary flags of an
// invocation.
func WithBatch(first, last bool) *slog.Logger {
	return GetLogger().With("batch_first", first, "batch_last", last)
}

// WithUndoToken creates a logger with undo quantum context.
func WithUndoToken(token int64) *slog.Logger {
	return GetLogger().With("undo_token", token)
}

// WithTable creates a logger with table context.
// Use this for catalog and table operations.
//
// Example:
//
//	log := logging.WithTable("warehouse")
//	log.Info("table loaded", "rows", n)
func WithTable(tableName string) *slog.Logger {
	return GetLogger().With("table", tableName)
}

// WithSite creates a logger identifying one engine instance.
func WithSite(siteID int64, partitionID int32) *slog.Logger {
	return GetLogger().With("site_id", siteID, "partition_id", partitionID)
}

// WithComponent creates a logger with component/subsystem context.
//
// Example:
//
//	log := logging.WithComponent("fragcache")
//	log.Debug("entry evicted", "fragment_id", id)
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithError creates a logger with error context.
// Use this when logging errors to include the error in structured format.
//
// Example:
//
//	log := logging.WithError(err)
//	log.Error("fragment failed", "fragment_id", id)
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}
