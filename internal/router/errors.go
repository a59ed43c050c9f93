package router

import "errors"

var (
	// ErrMessageTooLarge is returned when a payload exceeds the
	// configured max_ipc_msg_size.
	ErrMessageTooLarge = errors.New("router: payload exceeds max_ipc_msg_size")

	// ErrInvalidIdentity is returned when a source or destination
	// identity is empty or longer than 16 bytes.
	ErrInvalidIdentity = errors.New("router: identity must be 1-16 bytes")

	// ErrIdentityInUse is returned by Connect when the identity is
	// already bound to another mailbox (mandatory routing rejects
	// ambiguous peers rather than silently sharing a queue).
	ErrIdentityInUse = errors.New("router: identity already connected")

	// ErrClosed is returned when an operation is attempted after the
	// router has been closed.
	ErrClosed = errors.New("router: closed")
)
