package agent

import "errors"

// Sentinel errors returned by Agent lifecycle methods.
var (
	// ErrConnectionTimeout is returned (wrapped) by Connect whenever the
	// broker session cannot be established: the connect timeout elapsed
	// or the broker handshake failed.
	ErrConnectionTimeout = errors.New("agent: timed out connecting to broker")

	// ErrAssignmentTimeout is returned by Run when no sector
	// assignment arrives from the monitor within the assignment
	// timeout window.
	ErrAssignmentTimeout = errors.New("agent: timed out waiting for sector assignment")

	// ErrRejected is returned by Run when the monitor rejects this
	// agent's admission.
	ErrRejected = errors.New("agent: rejected by monitor")
)
