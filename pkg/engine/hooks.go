package engine

import (
	"io"
	"time"
)

// StreamHooks is the collaborator that owns durable snapshot streaming and
// export. The engine forwards calls to it and keeps them out of running
// fragments.
type StreamHooks interface {
	// Tick is the periodic flush driven by the partition's scheduler.
	Tick(now time.Time, lastCommittedTxnID int64) error
	// Quiesce flushes everything committed up to lastCommittedTxnID.
	Quiesce(lastCommittedTxnID int64) error
	// ActivateStream starts streaming the named persistent table.
	ActivateStream(tableID int32) error
	// StreamMore writes the next chunk of an active stream into w and
	// returns the bytes written, or 0 when the stream is finished.
	StreamMore(tableID int32, w io.Writer) (int, error)
}

// NopHooks accepts every call and streams nothing.
type NopHooks struct{}

func (NopHooks) Tick(time.Time, int64) error              { return nil }
func (NopHooks) Quiesce(int64) error                      { return nil }
func (NopHooks) ActivateStream(int32) error               { return nil }
func (NopHooks) StreamMore(int32, io.Writer) (int, error) { return 0, nil }

func (e *Engine) Tick(now time.Time, lastCommittedTxnID int64) error {
	if err := e.enter("Tick"); err != nil {
		return err
	}
	defer e.exit()
	return e.hooks.Tick(now, lastCommittedTxnID)
}

func (e *Engine) Quiesce(lastCommittedTxnID int64) error {
	if err := e.enter("Quiesce"); err != nil {
		return err
	}
	defer e.exit()
	return e.hooks.Quiesce(lastCommittedTxnID)
}

// ActivateTableStream checks the table exists and hands it to the hooks.
func (e *Engine) ActivateTableStream(tableID int32) error {
	if err := e.enter("ActivateTableStream"); err != nil {
		return err
	}
	defer e.exit()
	if _, err := e.catalog.TableByID(tableID); err != nil {
		return err
	}
	return e.hooks.ActivateStream(tableID)
}

// TableStreamSerializeMore asks the hooks for the next chunk of a table
// stream, written into the result buffer.
func (e *Engine) TableStreamSerializeMore(tableID int32) (int, error) {
	if err := e.enter("TableStreamSerializeMore"); err != nil {
		return 0, err
	}
	defer e.exit()
	e.result.Reset(nil)
	return e.hooks.StreamMore(tableID, e.result)
}
