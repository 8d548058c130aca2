package sim

import "fmt"

// Kind is one of the closed error taxonomy the kernel raises. Callers
// distinguish kinds with errors.As, not string matching.
type Kind int

const (
	// KindInvalidTopology covers missing/unknown node type, bad edge
	// attributes, and dangling edge endpoints.
	KindInvalidTopology Kind = iota
	// KindInvalidPolicy covers path/endpoint mismatches, non-positive
	// sizes, negative qpid, self-dependency, and bad rate strings.
	KindInvalidPolicy
	// KindInvalidRate covers non-finite or non-positive rates, at
	// construction or at a runtime schedule update, and a rate schedule
	// naming a link that has no port.
	KindInvalidRate
	// KindNoRoute covers a packet whose computed next hop has no port at
	// its current node.
	KindNoRoute
	// KindUnknownNode covers a schedule or policy entry referring to an
	// undeclared node id.
	KindUnknownNode
)

func (k Kind) String() string {
	switch k {
	case KindInvalidTopology:
		return "InvalidTopology"
	case KindInvalidPolicy:
		return "InvalidPolicy"
	case KindInvalidRate:
		return "InvalidRate"
	case KindNoRoute:
		return "NoRoute"
	case KindUnknownNode:
		return "UnknownNode"
	default:
		return "Unknown"
	}
}

// Error is the kernel's error type: a Kind plus a message, satisfying the
// stdlib error interface through its pointer. Use errors.As with a
// *sim.Error target (var se *sim.Error; errors.As(err, &se)) or the Is(Kind)
// helper to branch on the kind.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

// Is reports whether err is a *sim.Error of the given kind.
func Is(err error, kind Kind) bool {
	se, ok := err.(*Error)
	return ok && se.Kind == kind
}

func newErrorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NewError builds a *Error of the given kind. Exported for use by
// collaborator packages (e.g. topo) that need to raise the same taxonomy.
func NewError(kind Kind, format string, args ...any) *Error {
	return newErrorf(kind, format, args...)
}
