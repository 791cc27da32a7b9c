package kernel

import (
	"fmt"
	"strconv"
	"strings"
)

// Operation selects the boolean operation. The ordinals are passed across
// the engine boundary unchanged and must not be renumbered.
type Operation int

const (
	Union               Operation = iota // in A or in B
	Intersection                         // in A and in B
	AMinusB                              // in A but not in B
	BMinusA                              // in B but not in A
	SymmetricDifference                  // in A or B but not both
	All                                  // all split faces of A and B
)

var operationNames = [...]string{
	Union:               "Union",
	Intersection:        "Intersection",
	AMinusB:             "AMinusB",
	BMinusA:             "BMinusA",
	SymmetricDifference: "SymmetricDifference",
	All:                 "All",
}

// aliases maps lower-case spellings accepted by ParseOperation.
var aliases = map[string]Operation{
	"union":                Union,
	"intersection":         Intersection,
	"intersect":            Intersection,
	"aminusb":              AMinusB,
	"a-minus-b":            AMinusB,
	"difference":           AMinusB,
	"bminusa":              BMinusA,
	"b-minus-a":            BMinusA,
	"symmetricdifference":  SymmetricDifference,
	"symmetric-difference": SymmetricDifference,
	"xor":                  SymmetricDifference,
	"all":                  All,
}

// Operations returns all operations in ordinal order.
func Operations() []Operation {
	return []Operation{Union, Intersection, AMinusB, BMinusA, SymmetricDifference, All}
}

// Valid reports whether o is one of the six defined operations.
func (o Operation) Valid() bool {
	return o >= Union && o <= All
}

func (o Operation) String() string {
	if !o.Valid() {
		return fmt.Sprintf("Operation(%d)", int(o))
	}
	return operationNames[o]
}

// ParseOperation accepts an operation name (case-insensitive, with a few
// aliases such as "difference" and "xor") or its ordinal.
func ParseOperation(s string) (Operation, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		op := Operation(n)
		if !op.Valid() {
			return 0, fmt.Errorf("%w: ordinal %d", ErrInvalidOperation, n)
		}
		return op, nil
	}
	if op, ok := aliases[strings.ToLower(s)]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOperation, s)
}

// Usage lists the operations with their ordinals, for prompts and help text.
func Usage() string {
	parts := make([]string, 0, len(operationNames))
	for _, op := range Operations() {
		parts = append(parts, fmt.Sprintf("%s (%d)", op, int(op)))
	}
	return strings.Join(parts, ", ")
}
