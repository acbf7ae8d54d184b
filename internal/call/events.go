package call

import (
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/classcall/internal/media"
)

// Event is anything the session reacts to. Capability callbacks translate
// into events which are handled one at a time by the session goroutine.
type Event interface {
	isEvent()
}

// messageReceived carries one raw frame from the signaling channel.
type messageReceived struct{ data []byte }

// channelOpened is posted once the signaling channel is connected.
type channelOpened struct{}

// channelClosed ends the signaling channel; err is nil for a normal close.
type channelClosed struct{ err error }

// candidateDiscovered is a locally gathered ICE candidate.
type candidateDiscovered struct{ candidate *webrtc.ICECandidateInit }

// trackReceived is a remote track surfaced by the peer connection.
type trackReceived struct{ track media.RemoteTrack }

// connectionStateChanged is a peer connection state transition.
type connectionStateChanged struct{ state webrtc.PeerConnectionState }

func (messageReceived) isEvent()        {}
func (channelOpened) isEvent()          {}
func (channelClosed) isEvent()          {}
func (candidateDiscovered) isEvent()    {}
func (trackReceived) isEvent()          {}
func (connectionStateChanged) isEvent() {}
