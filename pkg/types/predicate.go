package types

import "strings"

// Predicate is a binary comparison operator.
type Predicate int

const (
	Equals Predicate = iota
	LessThan
	GreaterThan
	LessThanOrEqual
	GreaterThanOrEqual
	NotEqual
	Like
)

func (p Predicate) String() string {
	switch p {
	case Equals:
		return "="

	case LessThan:
		return "<"

	case GreaterThan:
		return ">"

	case LessThanOrEqual:
		return "<="

	case GreaterThanOrEqual:
		return ">="

	case NotEqual:
		return "!="

	case Like:
		return "LIKE"

	default:
		return "UNKNOWN"
	}
}

// ParsePredicate accepts both the symbolic and the plan-node spelling
// ("=", "EQ", "<>", "NE", ...).
func ParsePredicate(s string) (Predicate, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "=", "==", "EQ", "EQUAL":
		return Equals, true
	case "<", "LT", "LESSTHAN":
		return LessThan, true
	case ">", "GT", "GREATERTHAN":
		return GreaterThan, true
	case "<=", "LE", "LTE", "LESSTHANOREQUALTO":
		return LessThanOrEqual, true
	case ">=", "GE", "GTE", "GREATERTHANOREQUALTO":
		return GreaterThanOrEqual, true
	case "!=", "<>", "NE", "NOTEQUAL":
		return NotEqual, true
	case "LIKE":
		return Like, true
	default:
		return 0, false
	}
}

// holds reports whether the ordering result c satisfies p.
func (p Predicate) holds(c int) bool {
	switch p {
	case Equals:
		return c == 0
	case LessThan:
		return c < 0
	case GreaterThan:
		return c > 0
	case LessThanOrEqual:
		return c <= 0
	case GreaterThanOrEqual:
		return c >= 0
	case NotEqual:
		return c != 0
	default:
		return false
	}
}

// matchLike implements SQL LIKE with % and _ wildcards.
func matchLike(s, pattern string) bool {
	sr, pr := []rune(s), []rune(pattern)
	si, pi := 0, 0
	star, mark := -1, 0
	for si < len(sr) {
		switch {
		case pi < len(pr) && (pr[pi] == '_' || pr[pi] == sr[si]):
			si++
			pi++
		case pi < len(pr) && pr[pi] == '%':
			star = pi
			mark = si
			pi++
		case star != -1:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(pr) && pr[pi] == '%' {
		pi++
	}
	return pi == len(pr)
}
