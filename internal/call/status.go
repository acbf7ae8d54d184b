package call

// Status is the UI-facing projection of a session.
type Status int

const (
	StatusConnecting Status = iota
	StatusAwaitingPeer
	StatusInCall
	StatusDisconnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusAwaitingPeer:
		return "awaitingPeer"
	case StatusInCall:
		return "inCall"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends the session; a new call needs a new
// Session.
func (s Status) Terminal() bool {
	return s == StatusDisconnected || s == StatusError
}

// StatusLine renders a short human-readable line for st, followed by the raw
// error message when there is one.
func StatusLine(st Status, err error) string {
	var line string
	switch st {
	case StatusConnecting:
		line = "Connecting..."
	case StatusAwaitingPeer:
		line = "Waiting for the other participant"
	case StatusInCall:
		line = "In call"
	case StatusDisconnected:
		line = "Call ended"
	case StatusError:
		line = "Call failed"
	default:
		line = st.String()
	}
	if err != nil {
		line += ": " + err.Error()
	}
	return line
}
