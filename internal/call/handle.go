package call

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/classcall/internal/media"
	"github.com/1ureka/classcall/internal/signaling"
)

// handleEvent is the single entry point of the state machine. It runs on the
// session goroutine only.
func (s *Session) handleEvent(ev Event) {
	if s.isClosed() || s.Status().Terminal() {
		return
	}

	switch ev := ev.(type) {
	case channelOpened:
		s.transition(StatusAwaitingPeer, nil)

	case channelClosed:
		if ev.err != nil {
			s.fail(ErrSignalingConnect, ev.err)
			return
		}
		s.logger().Info("signaling channel closed by relay")
		s.transition(StatusDisconnected, nil)

	case messageReceived:
		s.handleMessage(ev.data)

	case candidateDiscovered:
		if ev.candidate == nil {
			return
		}
		if err := s.send(signaling.Message{Type: signaling.TypeCandidate, Candidate: ev.candidate}); err != nil {
			s.logger().Warn("send candidate: %v", err)
		}

	case trackReceived:
		s.attachRemote(ev.track)

	case connectionStateChanged:
		s.logger().Debug("peer connection %s", ev.state)
		// Handlers are detached before a local Close, so closed here means
		// the remote end shut the connection down.
		switch ev.state {
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			s.fail(ErrPeerConnection, fmt.Errorf("connection %s", ev.state))
		}
	}
}

func (s *Session) handleMessage(data []byte) {
	s.stats.AddRecv()

	msg, err := signaling.Decode(data)
	if msg.Sender != "" && msg.Sender == s.clientIDValue() {
		s.stats.AddLoopback()
		return
	}
	if err != nil {
		s.fail(ErrSignalingProtocol, err)
		return
	}

	s.logger().Debug("← %s from %s", msg.Type, msg.Sender)

	switch msg.Type {
	case signaling.TypePeerJoined:
		s.onPeerJoined()
	case signaling.TypeOffer:
		s.onOffer(msg)
	case signaling.TypeAnswer:
		s.onAnswer(msg)
	case signaling.TypeCandidate:
		s.onCandidate(msg)
	case signaling.TypePeerLeft:
		s.onPeerLeft()
	}
}

// onPeerJoined makes this side the offerer.
func (s *Session) onPeerJoined() {
	peer := s.livePeer()
	if peer == nil || s.MakingOffer() {
		return
	}

	s.mu.Lock()
	s.polite = true
	s.makingOffer = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.makingOffer = false
		s.mu.Unlock()
	}()

	s.transition(StatusConnecting, nil)

	offer, err := peer.CreateOffer()
	if s.isClosed() {
		return
	}
	if err != nil {
		s.fail(ErrNegotiation, fmt.Errorf("create offer: %w", err))
		return
	}
	if err := peer.SetLocalDescription(offer); err != nil {
		if !s.isClosed() {
			s.fail(ErrNegotiation, fmt.Errorf("set local offer: %w", err))
		}
		return
	}
	if s.isClosed() {
		return
	}
	if err := s.send(signaling.Message{Type: signaling.TypeOffer, SDP: offer.SDP}); err != nil {
		s.fail(ErrSignalingConnect, err)
	}
}

// onOffer answers a remote offer.
func (s *Session) onOffer(msg signaling.Message) {
	peer := s.livePeer()
	if peer == nil {
		return
	}

	s.mu.Lock()
	s.polite = true
	s.mu.Unlock()

	s.transition(StatusConnecting, nil)

	if err := peer.SetRemoteDescription(msg.SessionDescription()); err != nil {
		if !s.isClosed() {
			s.fail(ErrNegotiation, fmt.Errorf("set remote offer: %w", err))
		}
		return
	}
	if s.isClosed() {
		return
	}

	answer, err := peer.CreateAnswer()
	if s.isClosed() {
		return
	}
	if err != nil {
		s.fail(ErrNegotiation, fmt.Errorf("create answer: %w", err))
		return
	}
	if err := peer.SetLocalDescription(answer); err != nil {
		if !s.isClosed() {
			s.fail(ErrNegotiation, fmt.Errorf("set local answer: %w", err))
		}
		return
	}
	if s.isClosed() {
		return
	}
	if err := s.send(signaling.Message{Type: signaling.TypeAnswer, SDP: answer.SDP}); err != nil {
		s.fail(ErrSignalingConnect, err)
	}
}

func (s *Session) onAnswer(msg signaling.Message) {
	peer := s.livePeer()
	if peer == nil {
		return
	}

	s.transition(StatusConnecting, nil)

	if err := peer.SetRemoteDescription(msg.SessionDescription()); err != nil && !s.isClosed() {
		s.fail(ErrNegotiation, fmt.Errorf("set remote answer: %w", err))
	}
}

func (s *Session) onCandidate(msg signaling.Message) {
	// A null candidate is the remote end-of-candidates marker.
	if msg.Candidate == nil {
		return
	}
	peer := s.livePeer()
	if peer == nil {
		return
	}
	if err := peer.AddICECandidate(*msg.Candidate); err != nil && !s.isClosed() {
		s.fail(ErrNegotiation, fmt.Errorf("add candidate: %w", err))
	}
}

// onPeerLeft drops the remote stream; the peer connection stays up for a
// participant that joins later.
func (s *Session) onPeerLeft() {
	s.mu.Lock()
	s.remote = nil
	s.mu.Unlock()

	if s.deps.Playback != nil {
		s.deps.Playback.Clear()
	}
	s.transition(StatusAwaitingPeer, nil)
}

// attachRemote adds track to the remote stream, replacing the stream when it
// belongs to a different remote stream id. The published *RemoteStream is
// never mutated after Remote returns it.
func (s *Session) attachRemote(track media.RemoteTrack) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	next := &media.RemoteStream{ID: track.StreamID}
	if cur := s.remote; cur != nil && cur.ID == track.StreamID {
		next.Tracks = append(next.Tracks, cur.Tracks...)
	}
	next.Tracks = append(next.Tracks, track)
	s.remote = next
	s.mu.Unlock()

	s.logger().Info("remote %s track %s attached", track.Kind, track.ID)
	if s.deps.Playback != nil {
		s.deps.Playback.Attach(next)
	}
	s.transition(StatusInCall, nil)
}

// fail retains a kinded error and moves to the status it maps to.
func (s *Session) fail(kind, cause error) *Error {
	e := &Error{Kind: kind, Err: cause}
	s.logger().Error("%v", e)
	if kind == ErrPeerConnection {
		s.transition(StatusDisconnected, e)
	} else {
		s.transition(StatusError, e)
	}
	return e
}

// send writes msg on the signaling channel.
func (s *Session) send(msg signaling.Message) error {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch == nil {
		return ErrClosed
	}
	if err := ch.Send(msg); err != nil {
		return err
	}
	s.stats.AddSent()
	s.logger().Debug("→ %s", msg.Type)
	return nil
}

func (s *Session) livePeer() Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.peer
}

func (s *Session) clientIDValue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}
