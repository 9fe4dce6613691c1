package domain

import "errors"

// Protocol error taxonomy. Every operation either completes fully or fails
// with one of these and leaves no partial state behind.
var (
	// ErrAlreadyRegistered - registration attempted on an address that
	// already holds an identity.
	ErrAlreadyRegistered = errors.New("agent already registered")

	// ErrNotRegistered - an operation that requires an existing identity was
	// invoked by an address without one.
	ErrNotRegistered = errors.New("caller is not a registered agent")

	// ErrInvalidAgent - the target of a hire or lookup has no identity or
	// the address is malformed.
	ErrInvalidAgent = errors.New("invalid agent address")

	// ErrAgentInactive - the target is registered but deactivated.
	ErrAgentInactive = errors.New("agent is inactive")

	// ErrInsufficientPayment - the supplied amount is zero or negative.
	ErrInsufficientPayment = errors.New("insufficient payment")

	// ErrTransferFailed - a balance movement could not complete; the whole
	// operation rolls back.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrUnauthorized - the caller attempted to mutate a record it does not
	// own, or supplied no caller address at all.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidProfile - profile input failed validation (empty name).
	ErrInvalidProfile = errors.New("invalid agent profile")
)
