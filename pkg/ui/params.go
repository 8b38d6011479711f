package ui

import (
	"fmt"
	"strconv"
	"strings"

	"sitekernel/pkg/types"
)

// paramsPrefix starts the optional last editor line that carries the
// fragment's parameters, e.g. "-- params: INTEGER 30, VARCHAR Bob, NULL".
const paramsPrefix = "-- params:"

// splitInput separates the plan text from its parameter line.
func splitInput(input string) (string, []types.Value, error) {
	lines := strings.Split(strings.TrimRight(input, "\n "), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if !strings.HasPrefix(strings.ToLower(last), paramsPrefix) {
		return input, nil, nil
	}
	args, err := ParseParams(strings.TrimSpace(last[len(paramsPrefix):]))
	if err != nil {
		return "", nil, err
	}
	return strings.Join(lines[:len(lines)-1], "\n"), args, nil
}

// ParseParams reads a comma-separated list of "TYPE literal" items or NULL.
func ParseParams(s string) ([]types.Value, error) {
	if s == "" {
		return nil, nil
	}
	var out []types.Value
	for i, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if strings.EqualFold(item, "NULL") {
			out = append(out, types.Null(types.NullType))
			continue
		}
		typeName, literal, _ := strings.Cut(item, " ")
		t, err := types.ParseType(typeName)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %v", i, err)
		}
		v, err := parseLiteral(t, strings.TrimSpace(literal))
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %v", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseLiteral(t types.Type, lit string) (types.Value, error) {
	switch {
	case t == types.VarcharType:
		return types.NewVarchar(strings.Trim(lit, "'")), nil
	case t == types.FloatType:
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.NewFloat(f), nil
	case t == types.BooleanType:
		b, err := strconv.ParseBool(lit)
		if err != nil {
			return types.Value{}, err
		}
		return types.NewBoolean(b), nil
	case t.IsInteger():
		i, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.NewBigInt(i).CastTo(t)
	default:
		return types.Value{}, fmt.Errorf("unsupported parameter type %s", t)
	}
}
