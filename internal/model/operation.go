package model

import "fmt"

// Operation is the per-block action applied to the hub.
type Operation int

const (
	OpNothing Operation = iota
	OpBondA
	OpBondB
	OpBondBoth
	OpConvertBtoA
	OpConvertAtoB
)

var operationNames = [...]string{
	OpNothing:     "nothing",
	OpBondA:       "bond_a",
	OpBondB:       "bond_b",
	OpBondBoth:    "bond_both",
	OpConvertBtoA: "convert_b_to_a",
	OpConvertAtoB: "convert_a_to_b",
}

// Operations lists every operation in declaration order.
func Operations() []Operation {
	return []Operation{OpNothing, OpBondA, OpBondB, OpBondBoth, OpConvertBtoA, OpConvertAtoB}
}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return fmt.Sprintf("operation(%d)", int(o))
	}
	return operationNames[o]
}

// Valid reports whether o is one of the declared operations.
func (o Operation) Valid() bool {
	return o >= OpNothing && o <= OpConvertAtoB
}

// IsBond reports whether o mints against a caller-supplied amount.
func (o Operation) IsBond() bool {
	return o == OpBondA || o == OpBondB || o == OpBondBoth
}

// ParseOperation is the inverse of Operation.String.
func ParseOperation(s string) (Operation, error) {
	for i, name := range operationNames {
		if name == s {
			return Operation(i), nil
		}
	}
	return OpNothing, fmt.Errorf("unknown operation %q", s)
}
