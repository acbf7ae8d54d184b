package signaling

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildURL returns the room endpoint for base, in the form
// <ws-scheme>://<host>/<prefix>/ws/webrtc/<roomID>?clientId=<clientID>.
//
// base may use ws, wss, http or https, or be a bare host (wss is assumed).
// token, when non-empty, is passed as the "token" query parameter. Empty,
// "." and ".." room ids are rejected.
func BuildURL(base, roomID, clientID, token string) (string, error) {
	// JoinPath would resolve these against the endpoint path.
	switch roomID {
	case "", ".", "..":
		return "", fmt.Errorf("invalid room id %q", roomID)
	}

	raw := strings.TrimSpace(base)
	if !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid signaling URL: %s", base)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported signaling URL scheme %q", u.Scheme)
	}

	// JoinPath treats elements as escaped.
	u = u.JoinPath("ws", "webrtc", url.PathEscape(roomID))

	q := url.Values{}
	q.Set("clientId", clientID)
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return u.String(), nil
}
