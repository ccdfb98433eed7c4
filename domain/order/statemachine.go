package order

import (
	"time"

	"github.com/R3E-Network/intent-solver/domain/solvererrors"
)

// Transition identifies one legal edge in the state machine.
type Transition string

const (
	TransitionToPending   Transition = "created_to_pending"
	TransitionToExecuted  Transition = "pending_to_executed"
	TransitionToSettled   Transition = "executed_to_settled"
	TransitionToFinalized Transition = "settled_to_finalized"
	TransitionToFailed    Transition = "any_to_failed"
)

// legalFrom enumerates, for each Transition, the Status values it may start
// from. A transition attempted from any other Status is InvalidTransition.
var legalFrom = map[Transition]map[Status]bool{
	TransitionToPending:   {StatusCreated: true},
	TransitionToExecuted:  {StatusPending: true},
	TransitionToSettled:   {StatusExecuted: true},
	TransitionToFinalized: {StatusSettled: true},
	TransitionToFailed: {
		StatusCreated:  true,
		StatusPending:  true,
		StatusExecuted: true,
		StatusSettled:  true,
	},
}

var transitionTarget = map[Transition]Status{
	TransitionToPending:   StatusPending,
	TransitionToExecuted:  StatusExecuted,
	TransitionToSettled:   StatusSettled,
	TransitionToFinalized: StatusFinalized,
	TransitionToFailed:    StatusFailed,
}

// Apply validates and performs a transition in place on a clone of o,
// returning the clone. It never mutates the caller's Order. An illegal
// transition (not in the table above) is a programmer error: it returns an
// InvalidTransition SolverError and the caller is expected to log it and
// pin the order to Failed{internal} rather than retry the transition.
func Apply(o *Order, t Transition, now time.Time) (*Order, error) {
	if o.IsTerminal() {
		return nil, solvererrors.InvalidTransition(o.ID, string(o.Status), string(transitionTarget[t]))
	}

	allowed, ok := legalFrom[t]
	if !ok || !allowed[o.Status] {
		return nil, solvererrors.InvalidTransition(o.ID, string(o.Status), string(transitionTarget[t]))
	}

	next := o.Clone()
	next.Status = transitionTarget[t]

	switch t {
	case TransitionToPending:
		next.PendingAt = now
	case TransitionToExecuted:
		next.ExecutedAt = now
	case TransitionToSettled:
		next.SettledAt = now
	case TransitionToFinalized:
		next.FinalizedAt = now
	case TransitionToFailed:
		// FailureStage/FailureReason are stamped onto the returned clone by
		// MarkFailed after Apply succeeds.
	}

	return next, nil
}

// MarkFailed is a convenience wrapper around Apply(TransitionToFailed, ...)
// that also stamps the failure stage and a human-readable reason.
func MarkFailed(o *Order, stage FailureStage, reason string, now time.Time) (*Order, error) {
	next, err := Apply(o, TransitionToFailed, now)
	if err != nil {
		return nil, err
	}
	next.FailureStage = stage
	next.FailureReason = reason
	return next, nil
}

// ValidPrefix reports whether the given sequence of observed statuses is a
// prefix of some legal path through the machine. Used by tests driving the
// engine end to end, where an order's observed status history is checked
// against every legal lifecycle path rather than one hardcoded expectation.
func ValidPrefix(seq []Status) bool {
	paths := [][]Status{
		{StatusCreated, StatusPending, StatusExecuted, StatusSettled, StatusFinalized},
		{StatusCreated, StatusFailed},
		{StatusCreated, StatusPending, StatusFailed},
		{StatusCreated, StatusPending, StatusExecuted, StatusFailed},
		{StatusCreated, StatusPending, StatusExecuted, StatusSettled, StatusFailed},
	}
	for _, p := range paths {
		if isPrefix(seq, p) {
			return true
		}
	}
	return false
}

func isPrefix(seq, path []Status) bool {
	if len(seq) > len(path) {
		return false
	}
	for i, s := range seq {
		if s != path[i] {
			return false
		}
	}
	return true
}
