package undo

import (
	"fmt"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/tuple"
)

// Kind tags the variant of a Record.
type Kind uint8

const (
	// InsertUndo reverses an insert by removing the row.
	InsertUndo Kind = iota + 1
	// DeleteUndo reverses a delete by restoring the row image.
	DeleteUndo
	// UpdateUndo reverses an update by restoring the prior image.
	UpdateUndo
)

func (k Kind) String() string {
	switch k {
	case InsertUndo:
		return "INSERT_UNDO"
	case DeleteUndo:
		return "DELETE_UNDO"
	case UpdateUndo:
		return "UPDATE_UNDO"
	default:
		return fmt.Sprintf("UNDO(%d)", uint8(k))
	}
}

// Target is a table that knows how to apply the inverse of its own mutations.
type Target interface {
	Name() string
	UndoInsert(rowID int) error
	UndoDelete(rowID int, image tuple.Tuple) error
	UndoUpdate(rowID int, prior tuple.Tuple) error
}

// Record is the inverse of one row mutation.
type Record struct {
	Kind   Kind
	Target Target
	RowID  int
	// Image is the row as it was before the mutation (nil for InsertUndo).
	Image tuple.Tuple
}

// Apply replays the record against its target.
func (r Record) Apply() error {
	var err error
	switch r.Kind {
	case InsertUndo:
		err = r.Target.UndoInsert(r.RowID)
	case DeleteUndo:
		err = r.Target.UndoDelete(r.RowID, r.Image)
	case UpdateUndo:
		err = r.Target.UndoUpdate(r.RowID, r.Image)
	default:
		err = fmt.Errorf("unknown undo record kind %s", r.Kind)
	}
	if err != nil {
		e := dberror.New(dberror.ErrCategoryFatal, dberror.CodeUndoFailed, "undo record could not be applied").
			WithDetail("%s on %s row %d", r.Kind, r.Target.Name(), r.RowID).
			At("Apply", "UndoLog")
		e.Cause = err
		return e
	}
	return nil
}
