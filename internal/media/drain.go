package media

import (
	"sync"

	"github.com/1ureka/classcall/internal/util"
)

const drainBufferSize = 1500

// Drain is a headless playback sink: it reads every attached remote track
// and counts the bytes, which is all a terminal can "render".
type Drain struct {
	stats *util.Stats

	mu     sync.Mutex
	stream *RemoteStream
	gen    uint64
	seen   map[string]bool
}

// NewDrain returns a Drain crediting received bytes to stats (may be nil).
func NewDrain(stats *util.Stats) *Drain {
	return &Drain{stats: stats, seen: make(map[string]bool)}
}

// SetStats redirects the byte count to stats.
func (d *Drain) SetStats(stats *util.Stats) {
	d.mu.Lock()
	d.stats = stats
	d.mu.Unlock()
}

// Attach starts reading tracks of stream that are not already being read.
// Attaching a different stream replaces the current one.
func (d *Drain) Attach(stream *RemoteStream) {
	if stream == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream == nil || d.stream.ID != stream.ID {
		d.gen++
		d.seen = make(map[string]bool)
	}
	d.stream = stream

	for _, t := range stream.Tracks {
		if d.seen[t.ID] || t.Reader == nil {
			continue
		}
		d.seen[t.ID] = true
		go d.read(d.gen, t)
	}
}

// Clear detaches the current stream. Readers of cleared tracks stop
// crediting bytes and exit when their track ends.
func (d *Drain) Clear() {
	d.mu.Lock()
	d.stream = nil
	d.gen++
	d.seen = make(map[string]bool)
	d.mu.Unlock()
}

// Current returns the attached stream, or nil.
func (d *Drain) Current() *RemoteStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream
}

func (d *Drain) read(gen uint64, t RemoteTrack) {
	buf := make([]byte, drainBufferSize)
	for {
		n, err := t.Reader.Read(buf)
		if err != nil {
			return
		}

		d.mu.Lock()
		live := d.gen == gen
		stats := d.stats
		d.mu.Unlock()
		if !live {
			return
		}

		if stats != nil {
			stats.AddMediaRecv(n)
		}
	}
}
