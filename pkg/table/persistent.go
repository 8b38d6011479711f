package table

import (
	"fmt"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/tuple"
	"sitekernel/pkg/undo"
)

// Persistent is a resident table. Rows live in append-only slots; deletes
// leave tombstones so that row ids held by undo records stay valid.
// Every mutation registers its inverse with the supplied quantum.
type Persistent struct {
	id         int32
	name       string
	schema     *tuple.Schema
	primaryKey []int

	slots   []tuple.Tuple
	live    []bool
	count   int
	pkIndex map[string]int
}

// NewPersistent creates an empty table. primaryKey lists column indices and
// may be empty.
func NewPersistent(id int32, name string, schema *tuple.Schema, primaryKey []int) (*Persistent, error) {
	for _, idx := range primaryKey {
		if idx < 0 || idx >= schema.NumFields() {
			return nil, fmt.Errorf("primary key column %d out of range for table %s", idx, name)
		}
	}
	pk := make([]int, len(primaryKey))
	copy(pk, primaryKey)
	return &Persistent{
		id:         id,
		name:       name,
		schema:     schema,
		primaryKey: pk,
		pkIndex:    make(map[string]int),
	}, nil
}

func (p *Persistent) ID() int32 { return p.id }

func (p *Persistent) Name() string { return p.name }

func (p *Persistent) Schema() *tuple.Schema { return p.schema }

func (p *Persistent) PrimaryKey() []int { return p.primaryKey }

// RowCount is the number of live rows.
func (p *Persistent) RowCount() int { return p.count }

// Get returns the live row at rowID.
func (p *Persistent) Get(rowID int) (tuple.Tuple, bool) {
	if rowID < 0 || rowID >= len(p.slots) || !p.live[rowID] {
		return nil, false
	}
	return p.slots[rowID], true
}

// Scan calls fn for every live row in slot order. Rows must not be
// mutated through the table while scanning.
func (p *Persistent) Scan(fn func(rowID int, row tuple.Tuple) error) error {
	for id, row := range p.slots {
		if !p.live[id] {
			continue
		}
		if err := fn(id, row); err != nil {
			return err
		}
	}
	return nil
}

// Rows returns the live rows in slot order.
func (p *Persistent) Rows() []tuple.Tuple {
	out := make([]tuple.Tuple, 0, p.count)
	for id, row := range p.slots {
		if p.live[id] {
			out = append(out, row)
		}
	}
	return out
}

func (p *Persistent) pkKey(row tuple.Tuple) (string, bool) {
	if len(p.primaryKey) == 0 {
		return "", false
	}
	return row.Key(p.primaryKey), true
}

func (p *Persistent) uniqueViolation(row tuple.Tuple) error {
	return dberror.New(dberror.ErrCategoryFragment, dberror.CodeConstraintViolation,
		"unique constraint violation").
		WithDetail("table %s primary key %s", p.name, row.String()).
		At("Insert", "PersistentTable")
}

// Insert conforms and appends a row. It returns the new row id.
func (p *Persistent) Insert(row tuple.Tuple, q *undo.Quantum) (int, error) {
	conformed, err := p.schema.Conform(row)
	if err != nil {
		return -1, err
	}
	if key, ok := p.pkKey(conformed); ok {
		if _, dup := p.pkIndex[key]; dup {
			return -1, p.uniqueViolation(conformed)
		}
	}

	id := len(p.slots)
	p.slots = append(p.slots, conformed)
	p.live = append(p.live, true)
	p.count++
	if key, ok := p.pkKey(conformed); ok {
		p.pkIndex[key] = id
	}

	q.Record(undo.Record{Kind: undo.InsertUndo, Target: p, RowID: id})
	return id, nil
}

// Delete removes the live row at rowID.
func (p *Persistent) Delete(rowID int, q *undo.Quantum) error {
	image, ok := p.Get(rowID)
	if !ok {
		return fmt.Errorf("row %d of table %s is not live", rowID, p.name)
	}
	p.live[rowID] = false
	p.count--
	if key, ok := p.pkKey(image); ok {
		delete(p.pkIndex, key)
	}
	q.Record(undo.Record{Kind: undo.DeleteUndo, Target: p, RowID: rowID, Image: image})
	return nil
}

// Update replaces the live row at rowID.
func (p *Persistent) Update(rowID int, row tuple.Tuple, q *undo.Quantum) error {
	prior, ok := p.Get(rowID)
	if !ok {
		return fmt.Errorf("row %d of table %s is not live", rowID, p.name)
	}
	conformed, err := p.schema.Conform(row)
	if err != nil {
		return err
	}
	oldKey, hasPK := p.pkKey(prior)
	if hasPK {
		newKey, _ := p.pkKey(conformed)
		if newKey != oldKey {
			if _, dup := p.pkIndex[newKey]; dup {
				return p.uniqueViolation(conformed)
			}
			delete(p.pkIndex, oldKey)
			p.pkIndex[newKey] = rowID
		}
	}
	p.slots[rowID] = conformed
	q.Record(undo.Record{Kind: undo.UpdateUndo, Target: p, RowID: rowID, Image: prior})
	return nil
}

// Truncate removes every row, recording each delete.
func (p *Persistent) Truncate(q *undo.Quantum) error {
	for id := range p.slots {
		if p.live[id] {
			if err := p.Delete(id, q); err != nil {
				return err
			}
		}
	}
	return nil
}

// UndoInsert implements undo.Target.
func (p *Persistent) UndoInsert(rowID int) error {
	row, ok := p.Get(rowID)
	if !ok {
		return fmt.Errorf("inserted row %d is not live", rowID)
	}
	if key, ok := p.pkKey(row); ok {
		delete(p.pkIndex, key)
	}
	p.live[rowID] = false
	p.count--
	// Undo runs newest first, so no remaining record refers to a trailing slot.
	if rowID == len(p.slots)-1 {
		p.slots = p.slots[:rowID]
		p.live = p.live[:rowID]
	}
	return nil
}

// UndoDelete implements undo.Target.
func (p *Persistent) UndoDelete(rowID int, image tuple.Tuple) error {
	if rowID < 0 || rowID >= len(p.slots) || p.live[rowID] {
		return fmt.Errorf("deleted row %d cannot be restored", rowID)
	}
	if key, ok := p.pkKey(image); ok {
		if _, dup := p.pkIndex[key]; dup {
			return fmt.Errorf("restoring row %d would duplicate key %s", rowID, key)
		}
		p.pkIndex[key] = rowID
	}
	p.slots[rowID] = image
	p.live[rowID] = true
	p.count++
	return nil
}

// UndoUpdate implements undo.Target.
func (p *Persistent) UndoUpdate(rowID int, prior tuple.Tuple) error {
	current, ok := p.Get(rowID)
	if !ok {
		return fmt.Errorf("updated row %d is not live", rowID)
	}
	if oldKey, ok := p.pkKey(current); ok {
		newKey, _ := p.pkKey(prior)
		if newKey != oldKey {
			if _, dup := p.pkIndex[newKey]; dup {
				return fmt.Errorf("restoring row %d would duplicate key %s", rowID, newKey)
			}
			delete(p.pkIndex, oldKey)
			p.pkIndex[newKey] = rowID
		}
	}
	p.slots[rowID] = prior
	return nil
}
