// Package transport wraps a single pion PeerConnection as the media handle of
// one call session.
package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/classcall/internal/media"
)

// Transport owns one PeerConnection. Event handlers are held here rather
// than on the PeerConnection so that Detach can silence them before Close.
type Transport struct {
	pc *webrtc.PeerConnection

	mu          sync.RWMutex
	onCandidate func(*webrtc.ICECandidateInit)
	onTrack     func(media.RemoteTrack)
	onState     func(webrtc.PeerConnectionState)
	pcState     webrtc.PeerConnectionState

	closeOnce sync.Once
	closeErr  error
}

// New creates a Transport backed by a new PeerConnection. The Transport is
// closed when ctx is cancelled.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	pc, err := newPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	t := &Transport{
		pc:      pc,
		pcState: webrtc.PeerConnectionStateNew,
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering; nothing to trickle.
		if c == nil {
			return
		}
		t.mu.RLock()
		fn := t.onCandidate
		t.mu.RUnlock()
		if fn != nil {
			init := c.ToJSON()
			fn(&init)
		}
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		t.mu.RLock()
		fn := t.onTrack
		t.mu.RUnlock()
		if fn != nil {
			fn(media.RemoteTrack{
				ID:       remote.ID(),
				StreamID: remote.StreamID(),
				Kind:     remote.Kind(),
				Reader:   trackReader{remote},
			})
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.mu.Lock()
		t.pcState = state
		fn := t.onState
		t.mu.Unlock()
		if fn != nil {
			fn(state)
		}
	})

	context.AfterFunc(ctx, func() { _ = t.Close() })

	return t, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Detach drops every registered handler. Callbacks fired afterwards,
// including those triggered by Close, are discarded.
func (t *Transport) Detach() {
	t.mu.Lock()
	t.onCandidate = nil
	t.onTrack = nil
	t.onState = nil
	t.mu.Unlock()
}

// Close shuts down the PeerConnection. Safe to call multiple times.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.pc.Close()
	})
	return t.closeErr
}

// ConnectionState returns the last observed PeerConnection state.
func (t *Transport) ConnectionState() webrtc.PeerConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pcState
}

// ---------------------------------------------------------------------------
// Media
// ---------------------------------------------------------------------------

// AddTracks publishes local tracks. RTCP from each sender is drained so
// interceptors keep running.
func (t *Transport) AddTracks(tracks []webrtc.TrackLocal) error {
	for _, track := range tracks {
		sender, err := t.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("add %s track: %w", track.Kind(), err)
		}
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
	}
	return nil
}

// OnTrack registers the handler for inbound remote tracks.
func (t *Transport) OnTrack(fn func(media.RemoteTrack)) {
	t.mu.Lock()
	t.onTrack = fn
	t.mu.Unlock()
}

// trackReader adapts a remote track to io.Reader, dropping interceptor
// attributes.
type trackReader struct {
	remote *webrtc.TrackRemote
}

func (r trackReader) Read(p []byte) (int, error) {
	n, _, err := r.remote.Read(p)
	return n, err
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP and starts ICE gathering.
func (t *Transport) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (t *Transport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers the handler for locally gathered candidates.
func (t *Transport) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	t.mu.Lock()
	t.onCandidate = fn
	t.mu.Unlock()
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (t *Transport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}

// OnConnectionStateChange registers the handler for PeerConnection state
// transitions.
func (t *Transport) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	t.mu.Lock()
	t.onState = fn
	t.mu.Unlock()
}
