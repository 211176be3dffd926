package services

import "errors"

// Domain errors surfaced by the commission engine. Controllers map these to
// HTTP responses; everything else is treated as a store failure.
var (
	// ErrValidation rejects a request before any persistence.
	ErrValidation = errors.New("validation failed")

	// ErrInvoiceNotPaid is the approve/pay guard failure: the invoice must
	// be paid before the commission can move forward.
	ErrInvoiceNotPaid = errors.New("invoice is not paid")

	// ErrInvalidStateTransition rejects an edit that would violate the
	// approval ordering (approved requires paid, commission-paid requires
	// approved).
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrForbidden means the principal's scope does not cover the target
	// record or action.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound covers missing records, including records concealed from
	// out-of-scope agent principals.
	ErrNotFound = errors.New("record not found")

	ErrAgentNotFound          = errors.New("agent not found")
	ErrReassignTargetNotFound = errors.New("reassign target agent not found")
	ErrReassignTargetIsSelf   = errors.New("cannot reassign an agent's records to itself")

	// ErrStoreUnavailable is a transient store failure; the whole mutation
	// is safe to retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)
