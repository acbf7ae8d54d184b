// Package media models the local capture and the remote streams of a call.
package media

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/pion/webrtc/v4"
)

var (
	// ErrPermissionDenied reports that capture was refused.
	ErrPermissionDenied = errors.New("media permission denied")
	// ErrNoDevice reports that no capture device matched the request.
	ErrNoDevice = errors.New("no media device available")
)

// Source acquires a local capture (getUserMedia).
type Source interface {
	Acquire(ctx context.Context) (*Stream, error)
}

// Stream is an acquired local capture. Its tracks are exclusively owned by
// one call session.
type Stream struct {
	tracks []webrtc.TrackLocal

	stopOnce sync.Once
	onStop   func()
	stopped  chan struct{}
}

// NewStream wraps tracks into a Stream. onStop, if non-nil, runs once when
// the stream is stopped.
func NewStream(tracks []webrtc.TrackLocal, onStop func()) *Stream {
	return &Stream{
		tracks:  tracks,
		onStop:  onStop,
		stopped: make(chan struct{}),
	}
}

// Tracks returns the local tracks to publish.
func (s *Stream) Tracks() []webrtc.TrackLocal {
	return s.tracks
}

// Stop releases every track. Safe to call multiple times.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		if s.onStop != nil {
			s.onStop()
		}
	})
}

// Stopped returns a channel closed once Stop has run.
func (s *Stream) Stopped() <-chan struct{} {
	return s.stopped
}

// RemoteTrack is one inbound track surfaced by the peer connection.
type RemoteTrack struct {
	ID       string
	StreamID string
	Kind     webrtc.RTPCodecType

	// Reader yields the raw RTP payload stream; it returns an error once the
	// track ends.
	Reader io.Reader
}

// RemoteStream groups remote tracks sharing a stream id. A session holds at
// most one.
type RemoteStream struct {
	ID     string
	Tracks []RemoteTrack
}
