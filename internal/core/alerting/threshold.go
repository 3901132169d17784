package alerting

import (
	"math"
	"strconv"
	"strings"
)

// Operator is a threshold comparison operator
type Operator string

const (
	OpGt      Operator = "gt"
	OpGte     Operator = "gte"
	OpLt      Operator = "lt"
	OpLte     Operator = "lte"
	OpEq      Operator = "eq"
	OpBetween Operator = "between"
)

// NormalizeOperator maps symbolic and named operator spellings onto the
// canonical Operator constants. Unknown input normalizes to OpGt.
func NormalizeOperator(s string) Operator {
	switch strings.TrimSpace(s) {
	case ">", "gt":
		return OpGt
	case ">=", "gte":
		return OpGte
	case "<", "lt":
		return OpLt
	case "<=", "lte":
		return OpLte
	case "==", "=", "eq":
		return OpEq
	case "between":
		return OpBetween
	default:
		return OpGt
	}
}

// Symbol returns the display form of an operator
func (op Operator) Symbol() string {
	switch op {
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpEq:
		return "=="
	case OpBetween:
		return "between"
	default:
		return string(op)
	}
}

// ParseThreshold splits a raw threshold string into its numeric parts. The
// raw field may carry a comma-separated list ("10,20"); tokens that do not
// parse are dropped.
func ParseThreshold(raw string) []float64 {
	var parts []float64
	for _, token := range strings.Split(raw, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
		if err != nil {
			continue
		}
		parts = append(parts, v)
	}
	return parts
}

// EvaluateOperator applies op to value against the parsed threshold parts.
// For between, the bounds are order-independent and inclusive on both ends.
// For every other operator the first listed number wins; a non-finite value
// always fails. This function never panics.
func EvaluateOperator(op Operator, value float64, parts []float64) bool {
	if len(parts) == 0 {
		return false
	}

	if op == OpBetween {
		lo, hi := parts[0], parts[0]
		if len(parts) > 1 {
			lo = math.Min(parts[0], parts[1])
			hi = math.Max(parts[0], parts[1])
		}
		return !isNonFinite(value) && value >= lo && value <= hi
	}

	if isNonFinite(value) {
		return false
	}

	threshold := parts[0]
	switch op {
	case OpGt:
		return value > threshold
	case OpGte:
		return value >= threshold
	case OpLt:
		return value < threshold
	case OpLte:
		return value <= threshold
	case OpEq:
		return value == threshold
	default:
		return false
	}
}

func isNonFinite(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
