// Package config gathers the CLI configuration from flags, the environment
// and an optional .env file. Flags win over the environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"
)

// Environment variables read by LoadCall and LoadRelay.
const (
	EnvRelayURL = "CALL_RELAY_URL"
	EnvRoomID   = "CALL_ROOM_ID"
	EnvClientID = "CALL_CLIENT_ID"
	EnvToken    = "CALL_TOKEN"

	EnvRelayListen = "RELAY_LISTEN_ADDR"
	EnvRelaySecret = "RELAY_JWT_SECRET"
)

const (
	defaultRelayURL    = "ws://127.0.0.1:8080"
	defaultListenAddr  = ":8080"
	defaultStatsPeriod = 5 * time.Second
	defaultTokenTTL    = 12 * time.Hour
)

// Call stores everything callctl needs to run one call session.
type Call struct {
	RelayURL string // relay base URL, see signaling.BuildURL
	RoomID   string // may be empty; callctl then prompts for it
	ClientID string // a random uuid unless given
	Token    string // optional relay auth token

	ICEServers []webrtc.ICEServer // nil selects the transport defaults
	Audio      bool
	Video      bool

	StatsInterval time.Duration
	Debug         bool
	Trace         bool // debug plus pion's internal logging
}

// Relay stores the relay server parameters.
type Relay struct {
	ListenAddr string
	Secret     string // enables token checks when non-empty
	Debug      bool

	// Issue, when set, asks for a token for this client id instead of
	// serving. It requires Secret.
	Issue    string
	TokenTTL time.Duration
}

// LoadCall parses args (without the program name) into a Call.
func LoadCall(args []string) (*Call, error) {
	loadDotEnv()

	cfg := &Call{}
	var noAudio, noVideo bool

	fs := flag.NewFlagSet("callctl", flag.ContinueOnError)
	fs.StringVar(&cfg.RelayURL, "relay", getEnv(EnvRelayURL, defaultRelayURL), "Signaling relay URL (ws, wss, http, https or bare host)")
	fs.StringVar(&cfg.RoomID, "room", os.Getenv(EnvRoomID), "Room id shared with the other participant")
	fs.StringVar(&cfg.ClientID, "client", os.Getenv(EnvClientID), "Client id (random when empty)")
	fs.StringVar(&cfg.Token, "token", os.Getenv(EnvToken), "Relay auth token")
	fs.BoolVar(&noAudio, "no-audio", false, "Do not capture audio")
	fs.BoolVar(&noVideo, "no-video", false, "Do not capture video")
	fs.DurationVar(&cfg.StatsInterval, "stats", defaultStatsPeriod, "Traffic report interval")
	fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&cfg.Trace, "trace", false, "Enable debug logging including pion internals")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.RelayURL = strings.TrimSpace(cfg.RelayURL)
	cfg.RoomID = strings.TrimSpace(cfg.RoomID)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.Audio = !noAudio
	cfg.Video = !noVideo

	if cfg.RelayURL == "" {
		return nil, errors.New("missing relay URL")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	if cfg.StatsInterval <= 0 {
		return nil, fmt.Errorf("invalid -stats interval: %s", cfg.StatsInterval)
	}

	servers, err := ICEServersFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.ICEServers = servers

	return cfg, nil
}

// LoadRelay parses args (without the program name) into a Relay.
func LoadRelay(args []string) (*Relay, error) {
	loadDotEnv()

	cfg := &Relay{}
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.StringVar(&cfg.ListenAddr, "listen", getEnv(EnvRelayListen, defaultListenAddr), "Address to listen on")
	fs.StringVar(&cfg.Secret, "secret", os.Getenv(EnvRelaySecret), "HS256 secret for participant tokens (optional)")
	fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&cfg.Issue, "issue", "", "Print a participant token for this client id and exit")
	fs.DurationVar(&cfg.TokenTTL, "ttl", defaultTokenTTL, "Validity of tokens printed by -issue")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	cfg.Issue = strings.TrimSpace(cfg.Issue)
	if cfg.ListenAddr == "" {
		return nil, errors.New("missing listen address")
	}
	if cfg.Issue != "" {
		if cfg.Secret == "" {
			return nil, fmt.Errorf("-issue needs a secret (-secret or %s)", EnvRelaySecret)
		}
		if cfg.TokenTTL <= 0 {
			return nil, fmt.Errorf("invalid -ttl: %s", cfg.TokenTTL)
		}
	}
	return cfg, nil
}

// loadDotEnv loads ./.env when present. It never overrides variables that
// are already set.
func loadDotEnv() {
	_ = godotenv.Load()
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
