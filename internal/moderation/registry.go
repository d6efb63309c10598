package moderation

import "github.com/hearthbook/hearthbook/internal/authz"

// CounterKind names which tenant counter a decision adjusts.
type CounterKind int

const (
	CounterNone CounterKind = iota
	CounterMember
	CounterContent
)

// Outcome describes what a decision does to the ticket's target: the status
// written on the target record and the tenant counter that grows on approval.
type Outcome struct {
	Status  string
	Counter CounterKind
}

// Target binds a kind to its approval and rejection outcomes.
type Target struct {
	Kind      TargetKind
	OnApprove Outcome
	OnReject  Outcome
}

// Registry is the dispatch table from ticket kind to outcome. It is built
// exhaustively at startup; an unregistered kind can never gain a ticket.
type Registry map[TargetKind]Target

// DefaultRegistry covers every supported target kind. Rejected tenants are
// suspended rather than deleted so their data stays recoverable.
func DefaultRegistry() Registry {
	reg := Registry{
		KindMember: {
			Kind:      KindMember,
			OnApprove: Outcome{Status: "approved", Counter: CounterMember},
			OnReject:  Outcome{Status: "rejected"},
		},
		KindTenant: {
			Kind:      KindTenant,
			OnApprove: Outcome{Status: "active"},
			OnReject:  Outcome{Status: "suspended"},
		},
	}
	for _, entity := range authz.EntityTypes() {
		kind := ContentKind(entity)
		reg[kind] = Target{
			Kind:      kind,
			OnApprove: Outcome{Status: "approved", Counter: CounterContent},
			OnReject:  Outcome{Status: "rejected"},
		}
	}
	return reg
}

// Lookup resolves the outcome pair for a kind.
func (r Registry) Lookup(kind TargetKind) (Target, bool) {
	target, ok := r[kind]
	return target, ok
}
