package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Per-session counters
// ──────────────────────────────────────────────────────────────────────────────

// Stats counts signaling and media traffic for one call session.
type Stats struct {
	SignalsSent     atomic.Int64 // signaling frames written to the relay
	SignalsRecv     atomic.Int64 // signaling frames read from the relay
	LoopbackDropped atomic.Int64 // inbound frames discarded because we sent them
	MediaBytesRecv  atomic.Int64 // remote media bytes read by playback
}

func (s *Stats) AddSent()           { s.SignalsSent.Add(1) }
func (s *Stats) AddRecv()           { s.SignalsRecv.Add(1) }
func (s *Stats) AddLoopback()       { s.LoopbackDropped.Add(1) }
func (s *Stats) AddMediaRecv(n int) { s.MediaBytesRecv.Add(int64(n)) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs s every interval when
// anything changed. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, s *Stats, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var prevSent, prevRecv, prevMedia int64
		for {
			select {
			case <-ticker.C:
				sent := s.SignalsSent.Load()
				recv := s.SignalsRecv.Load()
				media := s.MediaBytesRecv.Load()

				rate := float64(media-prevMedia) / interval.Seconds()
				if sent != prevSent || recv != prevRecv || media != prevMedia {
					pterm.DefaultLogger.Info(formatStats(rate, sent-prevSent, recv-prevRecv))
				}

				prevSent = sent
				prevRecv = recv
				prevMedia = media

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(mediaRate float64, sent, recv int64) string {
	return fmt.Sprintf("Media: %s/s | Signals: %2d↑ %2d↓",
		formatBytes(mediaRate),
		sent,
		recv,
	)
}
