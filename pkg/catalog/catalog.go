package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/logging"
	"sitekernel/pkg/table"
	"sitekernel/pkg/tuple"
	"sitekernel/pkg/types"
)

// ColumnDef describes a column of a table addition.
type ColumnDef struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Size     int    `json:"size,omitempty"`
}

// TableDef describes a table addition.
type TableDef struct {
	ID         int32       `json:"id"`
	Name       string      `json:"name"`
	Columns    []ColumnDef `json:"columns"`
	PrimaryKey []string    `json:"primary_key,omitempty"`
}

// Diff is an already-computed catalog change: tables to create and table
// names to drop. Deletions are applied before additions.
type Diff struct {
	Additions []TableDef `json:"additions"`
	Deletions []string   `json:"deletions,omitempty"`
}

// ParseDiff decodes a JSON catalog diff.
func ParseDiff(data []byte) (Diff, error) {
	var d Diff
	if err := json.Unmarshal(data, &d); err != nil {
		return Diff{}, dberror.Wrap(err, dberror.CodeCatalogConflict, "ParseDiff", "Catalog")
	}
	return d, nil
}

// Catalog owns the resident tables of one engine by id and by name.
// Table names are matched case-insensitively.
type Catalog struct {
	nameToTable map[string]*table.Persistent
	idToTable   map[int32]*table.Persistent
	version     int64
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		nameToTable: make(map[string]*table.Persistent),
		idToTable:   make(map[int32]*table.Persistent),
	}
}

func nameKey(name string) string { return strings.ToUpper(name) }

// Version counts successfully applied diffs.
func (c *Catalog) Version() int64 { return c.version }

// Len is the number of tables.
func (c *Catalog) Len() int { return len(c.idToTable) }

// TableByID returns the table with the given id.
func (c *Catalog) TableByID(id int32) (*table.Persistent, error) {
	t, ok := c.idToTable[id]
	if !ok {
		return nil, dberror.Newf(dberror.ErrCategoryFragment, dberror.CodeUnknownTable,
			"table not found", "table id %d", id)
	}
	return t, nil
}

// TableByName returns the table with the given name.
func (c *Catalog) TableByName(name string) (*table.Persistent, error) {
	t, ok := c.nameToTable[nameKey(name)]
	if !ok {
		return nil, dberror.Newf(dberror.ErrCategoryFragment, dberror.CodeUnknownTable,
			"table not found", "table %q", name)
	}
	return t, nil
}

// TableNames returns all table names sorted.
func (c *Catalog) TableNames() []string {
	names := make([]string, 0, len(c.idToTable))
	for _, t := range c.idToTable {
		names = append(names, t.Name())
	}
	sort.Strings(names)
	return names
}

// Apply installs a diff. Either the whole diff is applied or, on error,
// the catalog is left exactly as it was. Dropped tables lose their rows.
func (c *Catalog) Apply(d Diff) error {
	byName := make(map[string]*table.Persistent, len(c.nameToTable)+len(d.Additions))
	byID := make(map[int32]*table.Persistent, len(c.idToTable)+len(d.Additions))
	for k, t := range c.nameToTable {
		byName[k] = t
	}
	for k, t := range c.idToTable {
		byID[k] = t
	}

	for _, name := range d.Deletions {
		t, ok := byName[nameKey(name)]
		if !ok {
			return conflict("cannot drop unknown table %q", name)
		}
		delete(byName, nameKey(name))
		delete(byID, t.ID())
	}

	for _, def := range d.Additions {
		if _, dup := byName[nameKey(def.Name)]; dup {
			return conflict("table %q already exists", def.Name)
		}
		if _, dup := byID[def.ID]; dup {
			return conflict("table id %d already in use", def.ID)
		}
		t, err := build(def)
		if err != nil {
			return err
		}
		byName[nameKey(def.Name)] = t
		byID[def.ID] = t
	}

	if err := validateIntegrity(byName, byID); err != nil {
		return err
	}

	c.nameToTable = byName
	c.idToTable = byID
	c.version++
	logging.WithComponent("Catalog").Info("catalog updated",
		"version", c.version, "added", len(d.Additions), "dropped", len(d.Deletions), "tables", len(byID))
	return nil
}

func build(def TableDef) (*table.Persistent, error) {
	if def.Name == "" {
		return nil, conflict("table %d has no name", def.ID)
	}
	cols := make([]tuple.Column, len(def.Columns))
	for i, cd := range def.Columns {
		typ, err := types.ParseType(cd.Type)
		if err != nil {
			return nil, conflict("table %s column %s: %v", def.Name, cd.Name, err)
		}
		cols[i] = tuple.Column{Name: cd.Name, Type: typ, Nullable: cd.Nullable, Size: cd.Size}
	}
	schema, err := tuple.NewSchema(cols)
	if err != nil {
		return nil, conflict("table %s: %v", def.Name, err)
	}
	pk := make([]int, 0, len(def.PrimaryKey))
	for _, name := range def.PrimaryKey {
		idx, err := schema.FindFieldIndex(name)
		if err != nil {
			return nil, conflict("table %s primary key: %v", def.Name, err)
		}
		pk = append(pk, idx)
	}
	return table.NewPersistent(def.ID, def.Name, schema, pk)
}

// validateIntegrity checks that both maps describe the same set of tables.
func validateIntegrity(byName map[string]*table.Persistent, byID map[int32]*table.Persistent) error {
	if len(byName) != len(byID) {
		return conflict("map size mismatch: %d names, %d ids", len(byName), len(byID))
	}
	for name, t := range byName {
		if other, ok := byID[t.ID()]; !ok || other != t {
			return conflict("table %s missing from id map", name)
		}
	}
	return nil
}

func conflict(format string, args ...any) error {
	return dberror.New(dberror.ErrCategoryUser, dberror.CodeCatalogConflict, "catalog change rejected").
		WithDetail(format, args...).
		At("Apply", "Catalog")
}

func (c *Catalog) String() string {
	return fmt.Sprintf("Catalog(version=%d, tables=%v)", c.version, c.TableNames())
}
