package call

import "errors"

// Error kinds. Every failure surfaced by a Session is an *Error whose Kind is
// one of these; match with errors.Is.
var (
	ErrMediaAcquisition  = errors.New("media acquisition failed")
	ErrSignalingConnect  = errors.New("signaling connection failed")
	ErrSignalingProtocol = errors.New("signaling protocol violation")
	ErrNegotiation       = errors.New("negotiation failed")
	ErrPeerConnection    = errors.New("peer connection lost")
)

// Misuse of the Session API. These are returned, never projected to status.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyStarted  = errors.New("session already started")
	ErrClosed          = errors.New("session closed")
)

// Error carries a failure kind and the underlying cause for display.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
