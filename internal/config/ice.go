package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pion/webrtc/v4"
)

// ICE server variables. EnvICEServersJSON takes precedence over the
// convenience variables.
const (
	EnvICEServersJSON = "CALL_ICE_SERVERS_JSON"
	EnvSTUNURLs       = "CALL_STUN_URLS"
	EnvTURNURLs       = "CALL_TURN_URLS"
	EnvTURNUsername   = "CALL_TURN_USERNAME"
	EnvTURNCredential = "CALL_TURN_CREDENTIAL"
)

// ICEServersFromEnv reads the ICE server list from the environment. An empty
// result means "use the defaults".
func ICEServersFromEnv() ([]webrtc.ICEServer, error) {
	if raw := strings.TrimSpace(os.Getenv(EnvICEServersJSON)); raw != "" {
		servers, err := ParseICEServersJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvICEServersJSON, err)
		}
		return servers, nil
	}
	return ParseICEServerLists(
		os.Getenv(EnvSTUNURLs),
		os.Getenv(EnvTURNURLs),
		os.Getenv(EnvTURNUsername),
		os.Getenv(EnvTURNCredential),
	)
}

// iceServerJSON mirrors the browser RTCIceServer dictionary.
type iceServerJSON struct {
	URLs       urlList `json:"urls"`
	Username   string  `json:"username,omitempty"`
	Credential string  `json:"credential,omitempty"`
}

// urlList accepts either a single string or a list of strings.
type urlList []string

func (l *urlList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*l = urlList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// ParseICEServersJSON parses a JSON array of RTCIceServer-like objects.
func ParseICEServersJSON(raw string) ([]webrtc.ICEServer, error) {
	var entries []iceServerJSON
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}

	servers := make([]webrtc.ICEServer, 0, len(entries))
	for i, e := range entries {
		server := webrtc.ICEServer{
			URLs:     splitList(strings.Join(e.URLs, ",")),
			Username: strings.TrimSpace(e.Username),
		}
		if cred := strings.TrimSpace(e.Credential); cred != "" {
			server.Credential = cred
		}
		if err := checkICEServer(server); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		servers = append(servers, server)
	}
	return servers, nil
}

// ParseICEServerLists builds servers from comma-separated STUN and TURN URL
// lists. TURN URLs require both a username and a credential.
func ParseICEServerLists(stunURLs, turnURLs, username, credential string) ([]webrtc.ICEServer, error) {
	var servers []webrtc.ICEServer

	if urls := splitList(stunURLs); len(urls) > 0 {
		server := webrtc.ICEServer{URLs: urls}
		if err := checkICEServer(server); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvSTUNURLs, err)
		}
		servers = append(servers, server)
	}

	if urls := splitList(turnURLs); len(urls) > 0 {
		username = strings.TrimSpace(username)
		credential = strings.TrimSpace(credential)
		if username == "" || credential == "" {
			return nil, fmt.Errorf("%s and %s are required with %s", EnvTURNUsername, EnvTURNCredential, EnvTURNURLs)
		}
		server := webrtc.ICEServer{URLs: urls, Username: username, Credential: credential}
		if err := checkICEServer(server); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvTURNURLs, err)
		}
		servers = append(servers, server)
	}

	return servers, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func checkICEServer(server webrtc.ICEServer) error {
	if len(server.URLs) == 0 {
		return errors.New("missing urls")
	}

	turn := false
	for _, u := range server.URLs {
		switch {
		case strings.HasPrefix(u, "stun:"), strings.HasPrefix(u, "stuns:"):
		case strings.HasPrefix(u, "turn:"), strings.HasPrefix(u, "turns:"):
			turn = true
		default:
			return fmt.Errorf("unsupported url scheme: %q", u)
		}
	}

	if turn {
		if server.Username == "" {
			return errors.New("turn urls require a username")
		}
		if cred, _ := server.Credential.(string); cred == "" {
			return errors.New("turn urls require a credential")
		}
	}
	return nil
}
