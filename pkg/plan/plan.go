package plan

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/types"
)

// FragmentID derives the cache key of a serialized plan. Identical bytes
// always produce the same id.
func FragmentID(raw []byte) int64 {
	return int64(xxhash.Sum64(raw))
}

// OutputColumn is a named expression produced by a node. Type is optional
// and overrides the inferred result type.
type OutputColumn struct {
	Name string
	Type types.Type
	Expr *Expr
}

// SortKey is one ORDER BY term.
type SortKey struct {
	Expr       *Expr
	Descending bool
}

// Aggregate is one aggregate function of an AGGREGATE node.
type Aggregate struct {
	Type AggregateType
	Name string
	Expr *Expr // nil for COUNT(*)
}

// Assignment sets one column of an UPDATE target.
type Assignment struct {
	Column string
	Expr   *Expr
}

// ColumnSpec declares a column of a MATERIALIZE or RECEIVE node.
type ColumnSpec struct {
	Name string
	Type types.Type
}

// Node is one plan node. Only the fields relevant to Kind are set.
type Node struct {
	ID       int
	Kind     Kind
	Children []int // arena indices

	Table       string
	Predicate   *Expr
	Output      []OutputColumn
	Limit       int
	Offset      int
	SortKeys    []SortKey
	GroupBy     []OutputColumn
	Aggregates  []Aggregate
	Columns     []ColumnSpec
	Rows        [][]*Expr
	Assignments []Assignment
}

// Plan is a validated, flattened plan fragment.
type Plan struct {
	Nodes        []*Node
	ExecuteOrder []int
}

// Root returns the arena index of the node whose output is the result.
func (p *Plan) Root() int {
	return p.ExecuteOrder[len(p.ExecuteOrder)-1]
}

// Mutates reports whether any node changes persistent tables.
func (p *Plan) Mutates() bool {
	for _, n := range p.Nodes {
		if n.Kind.Mutates() {
			return true
		}
	}
	return false
}

// ParamCount is one more than the highest parameter index referenced.
func (p *Plan) ParamCount() int {
	max := -1
	visit := func(e *Expr) {
		if m := e.MaxParam(); m > max {
			max = m
		}
	}
	for _, n := range p.Nodes {
		visit(n.Predicate)
		for _, o := range n.Output {
			visit(o.Expr)
		}
		for _, k := range n.SortKeys {
			visit(k.Expr)
		}
		for _, g := range n.GroupBy {
			visit(g.Expr)
		}
		for _, a := range n.Aggregates {
			visit(a.Expr)
		}
		for _, row := range n.Rows {
			for _, e := range row {
				visit(e)
			}
		}
		for _, a := range n.Assignments {
			visit(a.Expr)
		}
	}
	return max + 1
}

type rawPlan struct {
	Nodes       []rawNode `json:"nodes"`
	ExecuteList []int     `json:"execute_list,omitempty"`
}

type rawOutput struct {
	Name string   `json:"name"`
	Type string   `json:"type,omitempty"`
	Expr *rawExpr `json:"expr"`
}

type rawNode struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	Children []int  `json:"children,omitempty"`

	Table     string      `json:"table,omitempty"`
	Predicate *rawExpr    `json:"predicate,omitempty"`
	Output    []rawOutput `json:"output,omitempty"`
	Limit     *int        `json:"limit,omitempty"`
	Offset    int         `json:"offset,omitempty"`
	SortKeys  []struct {
		Expr       *rawExpr `json:"expr"`
		Descending bool     `json:"desc,omitempty"`
	} `json:"sort_keys,omitempty"`
	GroupBy    []rawOutput `json:"group_by,omitempty"`
	Aggregates []struct {
		Type string   `json:"type"`
		Name string   `json:"name"`
		Expr *rawExpr `json:"expr,omitempty"`
	} `json:"aggregates,omitempty"`
	Columns []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"columns,omitempty"`
	Rows        [][]*rawExpr `json:"rows,omitempty"`
	Assignments []struct {
		Column string   `json:"column"`
		Expr   *rawExpr `json:"expr"`
	} `json:"assignments,omitempty"`
}

func malformed(format string, args ...any) error {
	return dberror.Newf(dberror.ErrCategoryPlan, dberror.CodeMalformedPlan,
		"plan fragment could not be parsed", format, args...)
}

// Parse decodes and validates a serialized plan fragment.
func Parse(raw []byte) (*Plan, error) {
	var rp rawPlan
	if err := json.Unmarshal(raw, &rp); err != nil {
		return nil, malformed("%v", err)
	}
	if len(rp.Nodes) == 0 {
		return nil, malformed("fragment has no nodes")
	}

	index := make(map[int]int, len(rp.Nodes))
	for i, rn := range rp.Nodes {
		if _, dup := index[rn.ID]; dup {
			return nil, malformed("duplicate node id %d", rn.ID)
		}
		index[rn.ID] = i
	}

	p := &Plan{Nodes: make([]*Node, len(rp.Nodes))}
	parents := make([]int, len(rp.Nodes))
	for i, rn := range rp.Nodes {
		n, err := rn.decode()
		if err != nil {
			return nil, err
		}
		for _, childID := range rn.Children {
			ci, ok := index[childID]
			if !ok {
				return nil, malformed("node %d refers to unknown child %d", rn.ID, childID)
			}
			if ci == i {
				return nil, malformed("node %d is its own child", rn.ID)
			}
			parents[ci]++
			n.Children = append(n.Children, ci)
		}
		min, max := n.Kind.arity()
		if len(n.Children) < min || (max >= 0 && len(n.Children) > max) {
			return nil, malformed("%s node %d has %d children", n.Kind, n.ID, len(n.Children))
		}
		p.Nodes[i] = n
	}

	root := -1
	for i, count := range parents {
		if count > 1 {
			return nil, malformed("node %d has more than one parent", p.Nodes[i].ID)
		}
		if count == 0 {
			if root >= 0 {
				return nil, malformed("fragment has more than one root (%d, %d)", p.Nodes[root].ID, p.Nodes[i].ID)
			}
			root = i
		}
	}
	if root < 0 {
		return nil, malformed("fragment has no root")
	}

	if len(rp.ExecuteList) == 0 {
		p.ExecuteOrder = postOrder(p.Nodes, root)
		if len(p.ExecuteOrder) != len(p.Nodes) {
			return nil, malformed("fragment has nodes unreachable from the root")
		}
		return p, nil
	}

	if len(rp.ExecuteList) != len(rp.Nodes) {
		return nil, malformed("execute list names %d of %d nodes", len(rp.ExecuteList), len(rp.Nodes))
	}
	done := make([]bool, len(p.Nodes))
	for _, id := range rp.ExecuteList {
		i, ok := index[id]
		if !ok || done[i] {
			return nil, malformed("execute list entry %d is unknown or repeated", id)
		}
		for _, c := range p.Nodes[i].Children {
			if !done[c] {
				return nil, malformed("node %d runs before its child %d", id, p.Nodes[c].ID)
			}
		}
		done[i] = true
		p.ExecuteOrder = append(p.ExecuteOrder, i)
	}
	if p.Root() != root {
		return nil, malformed("execute list must end with the root node %d", p.Nodes[root].ID)
	}
	return p, nil
}

func postOrder(nodes []*Node, root int) []int {
	var order []int
	var visit func(i int)
	visit = func(i int) {
		for _, c := range nodes[i].Children {
			visit(c)
		}
		order = append(order, i)
	}
	visit(root)
	return order
}

func (rn rawNode) decode() (*Node, error) {
	n := &Node{ID: rn.ID, Kind: ParseKind(rn.Type), Table: rn.Table, Offset: rn.Offset, Limit: -1}
	if n.Kind == KindInvalid {
		return nil, malformed("node %d has unknown type %q", rn.ID, rn.Type)
	}
	at := func(field string) string { return "node " + strconv.Itoa(rn.ID) + " " + field }

	var err error
	if rn.Predicate != nil {
		if n.Predicate, err = rn.Predicate.decode(at("predicate")); err != nil {
			return nil, err
		}
	}
	if n.Output, err = decodeOutputs(rn.Output, at("output")); err != nil {
		return nil, err
	}
	if n.GroupBy, err = decodeOutputs(rn.GroupBy, at("group_by")); err != nil {
		return nil, err
	}
	for i, sk := range rn.SortKeys {
		e, err := sk.Expr.decode(at("sort_keys." + strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		n.SortKeys = append(n.SortKeys, SortKey{Expr: e, Descending: sk.Descending})
	}
	for i, ra := range rn.Aggregates {
		a := Aggregate{Type: parseAggregateType(ra.Type), Name: ra.Name}
		if a.Type == AggInvalid {
			return nil, malformed("%s: unknown aggregate %q", at("aggregates."+strconv.Itoa(i)), ra.Type)
		}
		if a.Type != AggCountStar {
			if a.Expr, err = ra.Expr.decode(at("aggregates." + strconv.Itoa(i))); err != nil {
				return nil, err
			}
		}
		if a.Name == "" {
			a.Name = strings.ReplaceAll(a.Type.String(), "(*)", "")
		}
		n.Aggregates = append(n.Aggregates, a)
	}
	for _, rc := range rn.Columns {
		t, err := types.ParseType(rc.Type)
		if err != nil {
			return nil, malformed("%s: %v", at("columns"), err)
		}
		n.Columns = append(n.Columns, ColumnSpec{Name: rc.Name, Type: t})
	}
	for i, rr := range rn.Rows {
		row := make([]*Expr, len(rr))
		for j, re := range rr {
			if row[j], err = re.decode(at("rows." + strconv.Itoa(i) + "." + strconv.Itoa(j))); err != nil {
				return nil, err
			}
		}
		n.Rows = append(n.Rows, row)
	}
	for i, ra := range rn.Assignments {
		e, err := ra.Expr.decode(at("assignments." + strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		n.Assignments = append(n.Assignments, Assignment{Column: ra.Column, Expr: e})
	}
	if rn.Limit != nil {
		n.Limit = *rn.Limit
	}
	return n, n.check()
}

func decodeOutputs(raw []rawOutput, path string) ([]OutputColumn, error) {
	var out []OutputColumn
	for i, ro := range raw {
		e, err := ro.Expr.decode(path + "." + strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		oc := OutputColumn{Name: ro.Name, Expr: e}
		if ro.Type != "" {
			if oc.Type, err = types.ParseType(ro.Type); err != nil {
				return nil, malformed("%s.%d: %v", path, i, err)
			}
		}
		out = append(out, oc)
	}
	return out, nil
}

// check validates per-kind required configuration.
func (n *Node) check() error {
	switch n.Kind {
	case KindSeqScan, KindInsert, KindUpdate, KindDelete:
		if n.Table == "" {
			return malformed("%s node %d needs a table", n.Kind, n.ID)
		}
	case KindProjection:
		if len(n.Output) == 0 {
			return malformed("PROJECTION node %d has no output columns", n.ID)
		}
	case KindLimit:
		if n.Limit < 0 || n.Offset < 0 {
			return malformed("LIMIT node %d needs a non-negative limit and offset", n.ID)
		}
	case KindOrderBy:
		if len(n.SortKeys) == 0 {
			return malformed("ORDERBY node %d has no sort keys", n.ID)
		}
	case KindAggregate:
		if len(n.Aggregates) == 0 && len(n.GroupBy) == 0 {
			return malformed("AGGREGATE node %d has neither aggregates nor group by", n.ID)
		}
	case KindMaterialize:
		if len(n.Columns) == 0 {
			return malformed("MATERIALIZE node %d declares no columns", n.ID)
		}
		for i, row := range n.Rows {
			if len(row) != len(n.Columns) {
				return malformed("MATERIALIZE node %d row %d has %d values for %d columns", n.ID, i, len(row), len(n.Columns))
			}
		}
	}
	if n.Kind == KindUpdate && len(n.Assignments) == 0 {
		return malformed("UPDATE node %d has no assignments", n.ID)
	}
	return nil
}
