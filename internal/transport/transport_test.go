package transport

import (
	"context"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/classcall/internal/media"
)

func TestConfigDefaultsToSTUN(t *testing.T) {
	servers := Config{}.iceServers()
	if len(servers) != 1 || len(servers[0].URLs) == 0 {
		t.Fatalf("default ICE servers = %+v, want the STUN list", servers)
	}
	for _, u := range servers[0].URLs {
		if !strings.HasPrefix(u, "stun:") {
			t.Errorf("default ICE url %q is not a STUN url", u)
		}
	}

	custom := []webrtc.ICEServer{{URLs: []string{"stun:example.org:3478"}}}
	if got := (Config{ICEServers: custom}).iceServers(); got[0].URLs[0] != "stun:example.org:3478" {
		t.Fatalf("custom ICE servers not used: %+v", got)
	}

	if got := (Config{ICEServers: []webrtc.ICEServer{}}).iceServers(); len(got) != 0 {
		t.Fatalf("empty ICE list replaced by defaults: %+v", got)
	}
}

func TestOfferCarriesLocalTracks(t *testing.T) {
	tr, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer tr.Close()

	stream, err := (&media.SyntheticSource{Audio: true, Video: true}).Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer stream.Stop()

	if err := tr.AddTracks(stream.Tracks()); err != nil {
		t.Fatalf("AddTracks failed: %v", err)
	}

	offer, err := tr.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	if offer.Type != webrtc.SDPTypeOffer {
		t.Errorf("offer type = %s, want offer", offer.Type)
	}
	for _, section := range []string{"m=audio", "m=video"} {
		if !strings.Contains(offer.SDP, section) {
			t.Errorf("offer SDP missing %q", section)
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	tr, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := tr.ConnectionState(); got != webrtc.PeerConnectionStateNew {
		t.Errorf("initial state = %s, want new", got)
	}

	tr.Detach()
	if err := tr.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestDetachSilencesHandlers(t *testing.T) {
	tr, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	fired := make(chan webrtc.PeerConnectionState, 8)
	tr.OnConnectionStateChange(func(s webrtc.PeerConnectionState) { fired <- s })
	tr.Detach()

	// Closing drives the PeerConnection to "closed"; the detached handler
	// must not observe it.
	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case s := <-fired:
		t.Fatalf("detached handler fired with %s", s)
	default:
	}
}

func TestContextCancelClosesTransport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr, err := New(ctx, Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cancel()

	// Close after the AfterFunc ran (or concurrently with it) stays a no-op.
	if err := tr.Close(); err != nil {
		t.Fatalf("Close after cancel failed: %v", err)
	}
}
