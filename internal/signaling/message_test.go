package signaling

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		want    Message
		wantErr error
	}{
		{
			name: "peer-joined",
			raw:  `{"type":"peer-joined","sender":"b"}`,
			want: Message{Type: TypePeerJoined, Sender: "b"},
		},
		{
			name: "peer-left",
			raw:  `{"type":"peer-left"}`,
			want: Message{Type: TypePeerLeft},
		},
		{
			name: "offer",
			raw:  `{"type":"offer","sdp":"v=0","sender":"a"}`,
			want: Message{Type: TypeOffer, SDP: "v=0", Sender: "a"},
		},
		{
			name: "answer",
			raw:  `{"type":"answer","sdp":"v=0"}`,
			want: Message{Type: TypeAnswer, SDP: "v=0"},
		},
		{
			name: "null candidate",
			raw:  `{"type":"candidate","candidate":null}`,
			want: Message{Type: TypeCandidate},
		},
		{
			name: "absent candidate",
			raw:  `{"type":"candidate"}`,
			want: Message{Type: TypeCandidate},
		},
		{name: "not json", raw: `hello`, wantErr: ErrMalformed},
		{name: "missing type", raw: `{"sdp":"v=0"}`, wantErr: ErrMalformed},
		{name: "unknown type", raw: `{"type":"bye"}`, wantErr: ErrUnknownType},
		{name: "offer without sdp", raw: `{"type":"offer"}`, wantErr: ErrMissingSDP},
		{name: "answer without sdp", raw: `{"type":"answer","sdp":""}`, wantErr: ErrMissingSDP},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.raw))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Decode error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got.Type != tc.want.Type || got.SDP != tc.want.SDP || got.Sender != tc.want.Sender {
				t.Errorf("Decode = %+v, want %+v", got, tc.want)
			}
			if got.Candidate != nil {
				t.Errorf("Candidate = %+v, want nil", got.Candidate)
			}
		})
	}
}

func TestDecodeCandidate(t *testing.T) {
	raw := `{"type":"candidate","candidate":{"candidate":"candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host","sdpMid":"0","sdpMLineIndex":0}}`

	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Candidate == nil {
		t.Fatal("Candidate is nil")
	}
	if !strings.HasPrefix(msg.Candidate.Candidate, "candidate:1 ") {
		t.Errorf("Candidate.Candidate = %q", msg.Candidate.Candidate)
	}
	if msg.Candidate.SDPMid == nil || *msg.Candidate.SDPMid != "0" {
		t.Errorf("Candidate.SDPMid = %v, want 0", msg.Candidate.SDPMid)
	}
}

func TestMessageWireShape(t *testing.T) {
	data, err := json.Marshal(Message{Type: TypeOffer, SDP: "v=0"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if got, want := string(data), `{"type":"offer","sdp":"v=0"}`; got != want {
		t.Errorf("wire = %s, want %s", got, want)
	}

	data, err = json.Marshal(Message{Type: TypePeerJoined})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if got, want := string(data), `{"type":"peer-joined"}`; got != want {
		t.Errorf("wire = %s, want %s", got, want)
	}
}

func TestSessionDescription(t *testing.T) {
	offer := Message{Type: TypeOffer, SDP: "o"}.SessionDescription()
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP != "o" {
		t.Errorf("offer description = %+v", offer)
	}
	answer := Message{Type: TypeAnswer, SDP: "a"}.SessionDescription()
	if answer.Type != webrtc.SDPTypeAnswer || answer.SDP != "a" {
		t.Errorf("answer description = %+v", answer)
	}
}

func TestDecodeKeepsSenderOnValidationError(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"offer","sender":"me"}`))
	if !errors.Is(err, ErrMissingSDP) {
		t.Fatalf("Decode error = %v, want ErrMissingSDP", err)
	}
	if msg.Sender != "me" {
		t.Errorf("Sender = %q, want me", msg.Sender)
	}
}
