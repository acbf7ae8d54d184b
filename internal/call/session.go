// Package call implements the client side of a two-party video call: one
// Session owns the local capture, the peer connection and the signaling
// channel, and drives the offer/answer/ICE exchange.
package call

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/classcall/internal/media"
	"github.com/1ureka/classcall/internal/util"
)

const eventQueueSize = 64

type update struct {
	status Status
	err    error
}

// Session is one call attempt. All state machine work happens on a single
// goroutine fed by an event queue; the exported methods are safe for
// concurrent use.
type Session struct {
	deps  Deps
	stats util.Stats

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event

	mu          sync.Mutex
	log         util.Logger
	roomID      string
	clientID    string
	started     bool
	closed      bool
	status      Status
	err         error
	polite      bool
	makingOffer bool

	stream  *media.Stream
	peer    Peer
	channel Channel
	remote  *media.RemoteStream

	onStatus  func(Status, error)
	notifying bool
	pending   []update
	wake      chan struct{}

	closeOnce sync.Once
}

// New returns an unstarted session in status connecting.
func New(deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan Event, eventQueueSize),
		status: StatusConnecting,
		wake:   make(chan struct{}, 1),
	}
}

// Start creates a session and starts it. The session is returned even when
// Start fails, so its status and error can be shown.
func Start(ctx context.Context, deps Deps, roomID, clientID string) (*Session, error) {
	s := New(deps)
	return s, s.Start(ctx, roomID, clientID)
}

// Start acquires local media, opens the peer connection and connects to the
// signaling relay for (roomID, clientID), in that order. ctx bounds the
// acquisition and the dial; Close aborts them as well.
//
// A session starts at most once: later calls return ErrAlreadyStarted and
// acquire nothing. Close must be called once the session is no longer
// needed, whether or not Start succeeded.
func (s *Session) Start(ctx context.Context, roomID, clientID string) error {
	if roomID == "" || clientID == "" {
		return fmt.Errorf("%w: room id and client id are required", ErrInvalidArgument)
	}
	if s.deps.Media == nil || s.deps.NewPeer == nil || s.deps.Dial == nil {
		return fmt.Errorf("%w: media, peer and dial capabilities are required", ErrInvalidArgument)
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.started:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.roomID = roomID
	s.clientID = clientID
	s.log = util.Scoped(roomID + "/" + clientID)
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	go s.run()

	// ── 1. Local media ─────────────────────────────────────────────────
	stream, err := s.deps.Media.Acquire(ctx)
	if err != nil {
		return s.startFailed(ErrMediaAcquisition, err)
	}
	if !s.adopt(func() { s.stream = stream }) {
		stream.Stop()
		return ErrClosed
	}
	s.logger().Debug("local media acquired (%d tracks)", len(stream.Tracks()))

	// ── 2. Peer connection ─────────────────────────────────────────────
	peer, err := s.deps.NewPeer(s.ctx)
	if err != nil {
		return s.startFailed(ErrNegotiation, err)
	}
	peer.OnICECandidate(func(c *webrtc.ICECandidateInit) {
		s.post(candidateDiscovered{candidate: c})
	})
	peer.OnTrack(func(t media.RemoteTrack) {
		s.post(trackReceived{track: t})
	})
	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.post(connectionStateChanged{state: state})
	})
	if !s.adopt(func() { s.peer = peer }) {
		peer.Detach()
		_ = peer.Close()
		return ErrClosed
	}
	if err := peer.AddTracks(stream.Tracks()); err != nil {
		return s.startFailed(ErrNegotiation, err)
	}

	// ── 3. Signaling channel ───────────────────────────────────────────
	ch, err := s.deps.Dial(ctx, roomID, clientID)
	if err != nil {
		return s.startFailed(ErrSignalingConnect, err)
	}
	if !s.adopt(func() { s.channel = ch }) {
		_ = ch.Close()
		return ErrClosed
	}
	s.logger().Info("signaling channel open")

	// channelOpened is queued before any frame can arrive.
	s.post(channelOpened{})
	ch.Listen(
		func(data []byte) { s.post(messageReceived{data: data}) },
		func(err error) { s.post(channelClosed{err: err}) },
	)

	return nil
}

// startFailed projects a start failure to status error. If the session was
// closed meanwhile, the failure is a consequence of Close and ErrClosed is
// returned instead.
func (s *Session) startFailed(kind, cause error) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.fail(kind, cause)
}

// adopt runs attach under the lock unless the session is closed. It reports
// whether the resource now belongs to the session; if not, the caller still
// owns it and must release it.
func (s *Session) adopt(attach func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	attach()
	return true
}

// Close ends the call. It releases the signaling channel, the peer
// connection (handlers detached first) and the local media, in that order,
// each at most once. Close is idempotent and safe at any point, including
// while Start is still running.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		ch, peer, stream := s.channel, s.peer, s.stream
		s.channel, s.peer, s.stream = nil, nil, nil
		s.remote = nil
		s.mu.Unlock()

		var errs []error
		if ch != nil {
			errs = append(errs, ch.Close())
		}
		if peer != nil {
			peer.Detach()
			errs = append(errs, peer.Close())
		}
		if stream != nil {
			stream.Stop()
		}
		if s.deps.Playback != nil {
			s.deps.Playback.Clear()
		}

		s.mu.Lock()
		if !s.status.Terminal() {
			s.status = StatusDisconnected
			s.enqueue(update{status: StatusDisconnected})
		}
		s.mu.Unlock()

		s.cancel()
		s.logger().Info("session closed")
		err = errors.Join(errs...)
	})
	return err
}

// ---------------------------------------------------------------------------
// Event loop
// ---------------------------------------------------------------------------

// post queues ev for the session goroutine. Events posted after Close are
// dropped.
func (s *Session) post(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Session) run() {
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		case <-s.ctx.Done():
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Status projection
// ---------------------------------------------------------------------------

// OnStatusChange registers fn for every later status transition; earlier
// transitions are not replayed, read Status for the current one. fn runs on
// a dedicated goroutine, in transition order, never concurrently with
// itself; it may call Close.
func (s *Session) OnStatusChange(fn func(Status, error)) {
	s.mu.Lock()
	s.onStatus = fn
	start := !s.notifying
	s.notifying = true
	s.mu.Unlock()

	if start {
		go s.notify()
	}
}

// transition moves to st unless the session is closed or already terminal.
// err, when non-nil, replaces the retained error.
func (s *Session) transition(st Status, err error) {
	s.mu.Lock()
	if s.closed || s.status.Terminal() || (s.status == st && err == nil) {
		s.mu.Unlock()
		return
	}
	s.status = st
	if err != nil {
		s.err = err
	}
	s.enqueue(update{status: st, err: err})
	log := s.log
	s.mu.Unlock()

	log.Debug("status → %s", st)
}

// enqueue records u for the listener. Without a listener u is dropped.
// Caller holds s.mu.
func (s *Session) enqueue(u update) {
	if s.onStatus == nil {
		return
	}
	if u.err == nil {
		u.err = s.err
	}
	s.pending = append(s.pending, u)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) notify() {
	for {
		select {
		case <-s.wake:
			s.flush()
		case <-s.ctx.Done():
			s.flush()
			return
		}
	}
}

func (s *Session) flush() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	fn := s.onStatus
	s.mu.Unlock()

	if fn == nil {
		return
	}
	for _, u := range pending {
		fn(u.status, u.err)
	}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the last error retained for display, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Polite reports whether this side has adopted the polite role.
func (s *Session) Polite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polite
}

// MakingOffer reports whether a locally initiated offer is in progress.
func (s *Session) MakingOffer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.makingOffer
}

// Remote returns the remote stream currently attached, or nil.
func (s *Session) Remote() *media.RemoteStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// RoomID returns the room the session was started for.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// ClientID returns the local participant id.
func (s *Session) ClientID() string {
	return s.clientIDValue()
}

// Stats returns the session's traffic counters.
func (s *Session) Stats() *util.Stats {
	return &s.stats
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) logger() util.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}
