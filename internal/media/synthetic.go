package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

const defaultSampleInterval = 20 * time.Millisecond

// Placeholder frames. An Opus TOC byte for a silent 20ms frame, and a VP8
// keyframe header stub; receivers only need a steady RTP flow.
var (
	opusSilence = []byte{0xf8, 0xff, 0xfe}
	vp8Stub     = []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a}
)

// SyntheticSource stands in for a camera and microphone. It produces Opus and
// VP8 sample tracks fed with placeholder frames until the stream is stopped.
type SyntheticSource struct {
	Audio    bool
	Video    bool
	Interval time.Duration // sample pacing, defaults to 20ms
	StreamID string        // defaults to "local"
}

var _ Source = (*SyntheticSource)(nil)

// Acquire implements Source.
func (s *SyntheticSource) Acquire(ctx context.Context) (*Stream, error) {
	if !s.Audio && !s.Video {
		return nil, ErrNoDevice
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	streamID := s.StreamID
	if streamID == "" {
		streamID = "local"
	}
	interval := s.Interval
	if interval <= 0 {
		interval = defaultSampleInterval
	}

	var (
		tracks  []webrtc.TrackLocal
		feeders []*webrtc.TrackLocalStaticSample
		frames  [][]byte
	)

	if s.Audio {
		t, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			"audio", streamID,
		)
		if err != nil {
			return nil, fmt.Errorf("create audio track: %w", err)
		}
		tracks = append(tracks, t)
		feeders = append(feeders, t)
		frames = append(frames, opusSilence)
	}

	if s.Video {
		t, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video", streamID,
		)
		if err != nil {
			return nil, fmt.Errorf("create video track: %w", err)
		}
		tracks = append(tracks, t)
		feeders = append(feeders, t)
		frames = append(frames, vp8Stub)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i, t := range feeders {
		wg.Add(1)
		go func(t *webrtc.TrackLocalStaticSample, frame []byte) {
			defer wg.Done()
			feed(t, frame, interval, done)
		}(t, frames[i])
	}

	return NewStream(tracks, func() {
		close(done)
		wg.Wait()
	}), nil
}

// feed writes frame to t every interval until done is closed. Writes before
// the track is bound to a sender are dropped by pion.
func feed(t *webrtc.TrackLocalStaticSample, frame []byte, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = t.WriteSample(pionmedia.Sample{Data: frame, Duration: interval})
		case <-done:
			return
		}
	}
}
