package call

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/classcall/internal/media"
	"github.com/1ureka/classcall/internal/signaling"
	"github.com/1ureka/classcall/internal/transport"
)

// Peer is the peer-connection capability a session drives.
type Peer interface {
	AddTracks(tracks []webrtc.TrackLocal) error
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(sdp webrtc.SessionDescription) error
	SetRemoteDescription(sdp webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	OnICECandidate(fn func(*webrtc.ICECandidateInit))
	OnTrack(fn func(media.RemoteTrack))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))

	// Detach drops the handlers above; Close must not reach them afterwards.
	Detach()
	Close() error
}

// Channel is the signaling channel to the relay.
type Channel interface {
	Send(msg signaling.Message) error
	Listen(onMessage func([]byte), onClose func(error))
	Close() error
}

// Playback renders the remote stream. The session only attaches and clears.
type Playback interface {
	Attach(stream *media.RemoteStream)
	Clear()
}

var (
	_ Peer     = (*transport.Transport)(nil)
	_ Channel  = (*signaling.Conn)(nil)
	_ Playback = (*media.Drain)(nil)
)

// Deps are the external capabilities consumed by a Session.
type Deps struct {
	Media   media.Source
	NewPeer func(ctx context.Context) (Peer, error)
	Dial    func(ctx context.Context, roomID, clientID string) (Channel, error)

	// Playback is optional.
	Playback Playback
}

// PionPeers returns a NewPeer backed by transport.New.
func PionPeers(cfg transport.Config) func(ctx context.Context) (Peer, error) {
	return func(ctx context.Context) (Peer, error) {
		tr, err := transport.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return tr, nil
	}
}

// WebSocketDialer returns a Dial backed by d.
func WebSocketDialer(d *signaling.Dialer) func(ctx context.Context, roomID, clientID string) (Channel, error) {
	return func(ctx context.Context, roomID, clientID string) (Channel, error) {
		conn, err := d.Dial(ctx, roomID, clientID)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
