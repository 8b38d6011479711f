package plan

import "strings"

// Kind is the closed set of plan node types.
type Kind int

const (
	KindInvalid Kind = iota
	KindSeqScan
	KindProjection
	KindLimit
	KindOrderBy
	KindAggregate
	KindNestLoop
	KindUnion
	KindMaterialize
	KindInsert
	KindUpdate
	KindDelete
	KindReceive
	KindSend
)

var kindNames = map[Kind]string{
	KindSeqScan:     "SEQSCAN",
	KindProjection:  "PROJECTION",
	KindLimit:       "LIMIT",
	KindOrderBy:     "ORDERBY",
	KindAggregate:   "AGGREGATE",
	KindNestLoop:    "NESTLOOP",
	KindUnion:       "UNION",
	KindMaterialize: "MATERIALIZE",
	KindInsert:      "INSERT",
	KindUpdate:      "UPDATE",
	KindDelete:      "DELETE",
	KindReceive:     "RECEIVE",
	KindSend:        "SEND",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "INVALID"
}

// ParseKind maps a node type name to its Kind.
func ParseKind(s string) Kind {
	s = strings.ToUpper(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindInvalid
}

// Mutates reports whether nodes of this kind change persistent tables.
func (k Kind) Mutates() bool {
	return k == KindInsert || k == KindUpdate || k == KindDelete
}

// arity returns the allowed child count range; max < 0 means unbounded.
func (k Kind) arity() (min, max int) {
	switch k {
	case KindSeqScan, KindMaterialize, KindReceive, KindUpdate, KindDelete:
		return 0, 0
	case KindNestLoop:
		return 2, 2
	case KindUnion:
		return 2, -1
	default:
		return 1, 1
	}
}

// AggregateType is an aggregate function of an AGGREGATE node.
type AggregateType int

const (
	AggInvalid AggregateType = iota
	AggCountStar
	AggCount
	AggSum
	AggMin
	AggMax
	AggAvg
)

func (a AggregateType) String() string {
	switch a {
	case AggCountStar:
		return "COUNT(*)"
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	case AggAvg:
		return "AVG"
	default:
		return "INVALID"
	}
}

func parseAggregateType(s string) AggregateType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COUNT_STAR", "COUNT(*)":
		return AggCountStar
	case "COUNT":
		return AggCount
	case "SUM":
		return AggSum
	case "MIN":
		return AggMin
	case "MAX":
		return AggMax
	case "AVG":
		return AggAvg
	default:
		return AggInvalid
	}
}
