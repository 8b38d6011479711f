package engine

import (
	"sitekernel/pkg/logging"
	"sitekernel/pkg/stats"
)

// SetUndoToken arms a new undo quantum for the next mutating work.
// NoUndoToken and the token of the already armed quantum are no-ops. A
// token not greater than every earlier one faults the engine.
func (e *Engine) SetUndoToken(token int64) error {
	if err := e.enter("SetUndoToken"); err != nil {
		return err
	}
	defer e.exit()

	if token == NoUndoToken {
		return nil
	}
	if e.current != nil && e.current.Token() == token {
		return nil
	}
	q, err := e.undoLog.Generate(token)
	if err != nil {
		e.checkFatal(err)
		return err
	}
	e.current = q
	e.sink.Set(stats.UndoQuantaHeld, float64(e.undoLog.Size()))
	return nil
}

// ReleaseUndoToken commits every quantum with a token at or below token.
func (e *Engine) ReleaseUndoToken(token int64) error {
	if err := e.enter("ReleaseUndoToken"); err != nil {
		return err
	}
	defer e.exit()

	if e.current != nil && e.current.Token() <= token {
		e.current = nil
	}
	n := e.undoLog.Release(token)
	e.sink.Add(stats.UndoQuantaReleased, float64(n))
	e.sink.Set(stats.UndoQuantaHeld, float64(e.undoLog.Size()))
	return nil
}

// UndoUndoToken rolls back every quantum with a token at or above token,
// newest first. A replay failure faults the engine.
func (e *Engine) UndoUndoToken(token int64) error {
	if err := e.enter("UndoUndoToken"); err != nil {
		return err
	}
	defer e.exit()

	n, err := e.undoLog.Undo(token)
	e.sink.Add(stats.UndoQuantaUndone, float64(n))
	e.sink.Set(stats.UndoQuantaHeld, float64(e.undoLog.Size()))
	if err != nil {
		e.checkFatal(err)
		return err
	}
	if e.current != nil && e.current.Token() >= token {
		e.current = nil
	}
	if n > 0 {
		logging.WithUndoToken(token).Info("transaction rolled back",
			"partition_id", e.partitionID, "quanta", n)
	}
	return nil
}
