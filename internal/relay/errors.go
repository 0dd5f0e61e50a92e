package relay

import "errors"

var (
	// ErrNoCredential means the handshake carried no token at all.
	ErrNoCredential = errors.New("no credential in handshake")

	// ErrAuthRejected means the handshake token failed verification.
	// The connection stays registered but unbound.
	ErrAuthRejected = errors.New("credential rejected")

	// ErrBadAttachment means an inline payload could not be decoded.
	ErrBadAttachment = errors.New("malformed inline attachment payload")
)
