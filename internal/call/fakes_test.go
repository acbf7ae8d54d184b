package call

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/classcall/internal/media"
	"github.com/1ureka/classcall/internal/signaling"
)

// Compile-time interface checks.
var (
	_ media.Source = (*fakeSource)(nil)
	_ Peer         = (*fakePeer)(nil)
	_ Channel      = (*fakeChannel)(nil)
	_ Playback     = (*fakePlayback)(nil)
)

// ---------------------------------------------------------------------------
// Media
// ---------------------------------------------------------------------------

// fakeSource hands out empty streams. When block is non-nil, Acquire waits
// for it (or ctx) before returning, like a pending permission prompt.
type fakeSource struct {
	err     error
	block   chan struct{}
	entered chan struct{}

	calls   atomic.Int32
	stopped atomic.Int32
}

func (f *fakeSource) Acquire(ctx context.Context) (*media.Stream, error) {
	f.calls.Add(1)
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return media.NewStream(nil, func() { f.stopped.Add(1) }), nil
}

// ---------------------------------------------------------------------------
// Peer connection
// ---------------------------------------------------------------------------

// fakePeer records every SDP operation. Once both descriptions are applied it
// surfaces one remote track. Like pion after a DTLS close_notify, a linked
// fakePeer reports "closed" when the other side closes.
type fakePeer struct {
	name string

	// offerGate, when non-nil, holds CreateOffer until it is closed.
	offerGate    chan struct{}
	offerEntered chan struct{}
	remoteErr    error

	mu          sync.Mutex
	onCandidate func(*webrtc.ICECandidateInit)
	onTrack     func(media.RemoteTrack)
	onState     func(webrtc.PeerConnectionState)
	local       *webrtc.SessionDescription
	remote      *webrtc.SessionDescription
	candidates  []webrtc.ICECandidateInit
	offers      int
	answers     int
	detached    bool
	closedAfter bool // Close ran after Detach
	closes      int
	tracked     bool
	link        *fakePeer
}

func newFakePeer(name string) *fakePeer {
	return &fakePeer{name: name}
}

func linkPeers(a, b *fakePeer) {
	a.link, b.link = b, a
}

func (p *fakePeer) AddTracks([]webrtc.TrackLocal) error { return nil }

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	gate, entered := p.offerGate, p.offerEntered
	p.offers++
	p.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-from-" + p.name}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	p.answers++
	p.mu.Unlock()
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-from-" + p.name}, nil
}

func (p *fakePeer) SetLocalDescription(sdp webrtc.SessionDescription) error {
	p.mu.Lock()
	p.local = &sdp
	fn := p.onCandidate
	p.mu.Unlock()

	// Gathering starts with the local description.
	if fn != nil {
		c := webrtc.ICECandidateInit{Candidate: "candidate:" + p.name}
		go fn(&c)
	}
	p.maybeConnected()
	return nil
}

func (p *fakePeer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	if p.remoteErr != nil {
		return p.remoteErr
	}
	p.mu.Lock()
	p.remote = &sdp
	p.mu.Unlock()
	p.maybeConnected()
	return nil
}

func (p *fakePeer) maybeConnected() {
	p.mu.Lock()
	ready := p.local != nil && p.remote != nil && !p.tracked
	if ready {
		p.tracked = true
	}
	fn := p.onTrack
	p.mu.Unlock()

	if ready && fn != nil {
		go fn(media.RemoteTrack{ID: "video", StreamID: "stream-of-peer-of-" + p.name, Kind: webrtc.RTPCodecTypeVideo})
	}
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	p.mu.Lock()
	p.onCandidate = fn
	p.mu.Unlock()
}

func (p *fakePeer) OnTrack(fn func(media.RemoteTrack)) {
	p.mu.Lock()
	p.onTrack = fn
	p.mu.Unlock()
}

func (p *fakePeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	p.onState = fn
	p.mu.Unlock()
}

func (p *fakePeer) Detach() {
	p.mu.Lock()
	p.detached = true
	p.onCandidate, p.onTrack, p.onState = nil, nil, nil
	p.mu.Unlock()
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closes++
	p.closedAfter = p.detached
	link := p.link
	p.mu.Unlock()

	if link != nil {
		link.emitState(webrtc.PeerConnectionStateClosed)
	}
	return nil
}

func (p *fakePeer) emitState(state webrtc.PeerConnectionState) {
	p.mu.Lock()
	fn := p.onState
	p.mu.Unlock()
	if fn != nil {
		go fn(state)
	}
}

func (p *fakePeer) emitTrack(t media.RemoteTrack) {
	p.mu.Lock()
	fn := p.onTrack
	p.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

func (p *fakePeer) emitCandidate(c *webrtc.ICECandidateInit) {
	p.mu.Lock()
	fn := p.onCandidate
	p.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (p *fakePeer) snapshot() (offers, answers, closes int, remote *webrtc.SessionDescription, candidates []webrtc.ICECandidateInit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offers, p.answers, p.closes, p.remote, append([]webrtc.ICECandidateInit(nil), p.candidates...)
}

// ---------------------------------------------------------------------------
// Signaling channel
// ---------------------------------------------------------------------------

// fakeChannel stands in for the relay connection. inject delivers frames as
// if the relay had sent them.
type fakeChannel struct {
	mu        sync.Mutex
	sent      []signaling.Message
	onMessage func([]byte)
	onClose   func(error)
	closes    int
	listening chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{listening: make(chan struct{})}
}

func (c *fakeChannel) Send(msg signaling.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closes > 0 {
		return fmt.Errorf("send on closed channel")
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) Listen(onMessage func([]byte), onClose func(error)) {
	c.mu.Lock()
	c.onMessage, c.onClose = onMessage, onClose
	c.mu.Unlock()
	close(c.listening)
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) inject(t *testing.T, msg signaling.Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	c.injectRaw(data)
}

func (c *fakeChannel) injectRaw(data []byte) {
	<-c.listening
	c.mu.Lock()
	fn := c.onMessage
	c.mu.Unlock()
	fn(data)
}

func (c *fakeChannel) drop(err error) {
	<-c.listening
	c.mu.Lock()
	fn := c.onClose
	c.mu.Unlock()
	fn(err)
}

func (c *fakeChannel) sentOf(t signaling.Type) []signaling.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []signaling.Message
	for _, m := range c.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeChannel) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// ---------------------------------------------------------------------------
// Playback
// ---------------------------------------------------------------------------

type fakePlayback struct {
	mu       sync.Mutex
	attached []*media.RemoteStream
	clears   int
}

func (p *fakePlayback) Attach(s *media.RemoteStream) {
	p.mu.Lock()
	p.attached = append(p.attached, s)
	p.mu.Unlock()
}

func (p *fakePlayback) Clear() {
	p.mu.Lock()
	p.clears++
	p.mu.Unlock()
}

func (p *fakePlayback) counts() (attached, clears int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.attached), p.clears
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type harness struct {
	s        *Session
	source   *fakeSource
	peer     *fakePeer
	channel  *fakeChannel
	playback *fakePlayback

	peers atomic.Int32
	dials atomic.Int32
}

func newHarness() *harness {
	h := &harness{
		source:   &fakeSource{},
		peer:     newFakePeer("local"),
		channel:  newFakeChannel(),
		playback: &fakePlayback{},
	}
	h.s = New(h.deps())
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		Media: h.source,
		NewPeer: func(context.Context) (Peer, error) {
			h.peers.Add(1)
			return h.peer, nil
		},
		Dial: func(context.Context, string, string) (Channel, error) {
			h.dials.Add(1)
			return h.channel, nil
		},
		Playback: h.playback,
	}
}

// started returns a harness whose session has reached awaitingPeer as
// "alice" in "room".
func started(t *testing.T) *harness {
	t.Helper()
	h := newHarness()
	if err := h.s.Start(context.Background(), "room", "alice"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = h.s.Close() })
	waitStatus(t, h.s, StatusAwaitingPeer)
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	waitForWithin(t, what, 3*time.Second, cond)
}

func waitForWithin(t *testing.T, what string, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitStatus(t *testing.T, s *Session, want Status) {
	t.Helper()
	waitFor(t, "status "+want.String(), func() bool { return s.Status() == want })
}
