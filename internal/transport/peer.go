package transport

import (
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/classcall/internal/util"
)

// DefaultSTUNServers is used when no ICE servers are configured.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Config parameterizes the underlying PeerConnection.
type Config struct {
	// ICEServers nil selects DefaultSTUNServers; an empty non-nil list
	// gathers host candidates only.
	ICEServers    []webrtc.ICEServer
	LoggerFactory logging.LoggerFactory // defaults to util.PionLoggerFactory

	// IncludeLoopback also gathers loopback host candidates, so two peers
	// on one machine connect without any network interface.
	IncludeLoopback bool
}

func (c Config) iceServers() []webrtc.ICEServer {
	if c.ICEServers != nil {
		return c.ICEServers
	}
	return []webrtc.ICEServer{{URLs: DefaultSTUNServers}}
}

// newPeerConnection creates a PeerConnection with default codecs and
// interceptors, logging through pterm.
func newPeerConnection(cfg Config) (*webrtc.PeerConnection, error) {
	factory := cfg.LoggerFactory
	if factory == nil {
		factory = util.PionLoggerFactory{}
	}

	se := webrtc.SettingEngine{LoggerFactory: factory}
	if cfg.IncludeLoopback {
		se.SetIncludeLoopbackCandidate(true)
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	return api.NewPeerConnection(webrtc.Configuration{
		ICEServers: cfg.iceServers(),
	})
}
