// Package signaling implements the per-room WebSocket signaling protocol
// between a call participant and the relay.
package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Type identifies the kind of signaling message.
type Type string

const (
	TypePeerJoined Type = "peer-joined"
	TypePeerLeft   Type = "peer-left"
	TypeOffer      Type = "offer"
	TypeAnswer     Type = "answer"
	TypeCandidate  Type = "candidate"
)

var (
	ErrMalformed   = errors.New("malformed signaling message")
	ErrUnknownType = errors.New("unknown signaling message type")
	ErrMissingSDP  = errors.New("signaling message missing sdp")
)

// Message is the JSON frame exchanged over the signaling channel.
//
// Sender is stamped by the relay with the originating client id; a
// participant discards frames carrying its own id.
type Message struct {
	Type      Type                     `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Sender    string                   `json:"sender,omitempty"`
}

// Decode parses and validates one inbound frame. When the frame is valid
// JSON but fails validation, the decoded fields are returned with the error
// so callers can still inspect Sender.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch msg.Type {
	case TypePeerJoined, TypePeerLeft, TypeCandidate:
	case TypeOffer, TypeAnswer:
		if msg.SDP == "" {
			return msg, fmt.Errorf("%w: %s", ErrMissingSDP, msg.Type)
		}
	case "":
		return msg, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return msg, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}

	return msg, nil
}

// SessionDescription returns the SDP carried by an offer or answer.
func (m Message) SessionDescription() webrtc.SessionDescription {
	sdpType := webrtc.SDPTypeOffer
	if m.Type == TypeAnswer {
		sdpType = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: sdpType, SDP: m.SDP}
}
