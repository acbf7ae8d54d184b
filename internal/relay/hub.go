// Package relay is the signaling relay: it fans signaling frames out between
// the two participants of a room, stamping each frame with its sender and
// announcing arrivals and departures.
package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/1ureka/classcall/internal/signaling"
	"github.com/1ureka/classcall/internal/util"
)

// RoomCapacity is the number of participants a room admits.
const RoomCapacity = 2

const (
	defaultSendBuffer   = 64
	defaultWriteWait    = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultPingInterval = 54 * time.Second
	maxMessageSize      = 1 << 20
)

var (
	ErrRoomFull        = errors.New("room is full")
	ErrDuplicateClient = errors.New("client already joined")
	ErrHubClosed       = errors.New("relay is shutting down")
)

// Options configure a Hub. Zero values select the defaults.
type Options struct {
	// Secret enables token checks when non-empty.
	Secret string

	SendBuffer   int
	WriteWait    time.Duration
	PongWait     time.Duration
	PingInterval time.Duration
}

func (o *Options) defaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
}

// Hub holds every room. Rooms exist while they have participants.
type Hub struct {
	opts     Options
	upgrader websocket.Upgrader
	engine   *gin.Engine

	mu     sync.Mutex
	rooms  map[string]map[string]*client
	closed bool
}

// New creates a Hub and its router.
func New(opts Options) *Hub {
	opts.defaults()

	h := &Hub{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]map[string]*client),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws/webrtc/:roomId", h.handleSignaling)

	h.engine = r
	return h
}

// Handler returns the relay's HTTP handler.
func (h *Hub) Handler() http.Handler {
	return h.engine
}

// Peers returns the client ids currently in roomID, sorted.
func (h *Hub) Peers(roomID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.rooms[roomID]))
	for id := range h.rooms[roomID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close disconnects every participant with a normal close and refuses new
// ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, peers := range h.rooms {
		for _, c := range peers {
			h.removeLocked(c)
		}
	}
}

// ---------------------------------------------------------------------------
// Handshake
// ---------------------------------------------------------------------------

func (h *Hub) handleSignaling(c *gin.Context) {
	roomID := c.Param("roomId")
	clientID := c.Query("clientId")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clientId is required"})
		return
	}

	if h.opts.Secret != "" {
		if err := verifyToken(h.opts.Secret, c.Query("token"), clientID); err != nil {
			util.LogWarning("[relay] reject %s/%s: %v", roomID, clientID, err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
	}

	// The seat is reserved before the upgrade so that two concurrent
	// handshakes cannot both take the last one.
	cl := &client{
		id:     clientID,
		roomID: roomID,
		hub:    h,
		send:   make(chan []byte, h.opts.SendBuffer),
	}
	if err := h.reserve(cl); err != nil {
		status := http.StatusConflict
		if errors.Is(err, ErrHubClosed) {
			status = http.StatusServiceUnavailable
		}
		util.LogWarning("[relay] reject %s/%s: %v", roomID, clientID, err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		util.LogWarning("[relay] upgrade %s/%s: %v", roomID, clientID, err)
		h.mu.Lock()
		h.removeLocked(cl)
		h.mu.Unlock()
		return
	}
	cl.conn = conn

	util.LogInfo("[relay] %s joined room %s", clientID, roomID)
	h.announce(cl, signaling.TypePeerJoined)

	go cl.writePump()
	go cl.readPump()
}

func (h *Hub) reserve(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	peers := h.rooms[c.roomID]
	if _, dup := peers[c.id]; dup {
		return ErrDuplicateClient
	}
	if len(peers) >= RoomCapacity {
		return ErrRoomFull
	}
	if peers == nil {
		peers = make(map[string]*client)
		h.rooms[c.roomID] = peers
	}
	peers[c.id] = c
	return nil
}

// ---------------------------------------------------------------------------
// Fan-out
// ---------------------------------------------------------------------------

// announce tells everyone else in c's room that c joined or left.
func (h *Hub) announce(c *client, t signaling.Type) {
	data, err := json.Marshal(signaling.Message{Type: t, Sender: c.id})
	if err != nil {
		util.LogError("[relay] marshal %s: %v", t, err)
		return
	}
	h.mu.Lock()
	h.broadcastLocked(c.roomID, c.id, data)
	h.mu.Unlock()
}

// forward relays a frame read from c to the rest of its room, with the
// sender field overwritten by c's id.
func (h *Hub) forward(c *client, frame []byte) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil || fields == nil {
		util.LogWarning("[relay] %s/%s: dropping non-JSON frame", c.roomID, c.id)
		return
	}
	sender, _ := json.Marshal(c.id)
	fields["sender"] = sender

	data, err := json.Marshal(fields)
	if err != nil {
		util.LogError("[relay] %s/%s: re-encode frame: %v", c.roomID, c.id, err)
		return
	}

	h.mu.Lock()
	h.broadcastLocked(c.roomID, c.id, data)
	h.mu.Unlock()
}

// broadcastLocked queues data for every participant of roomID except
// exclude. A participant whose buffer is full is disconnected and the
// others are told it left. Caller holds h.mu.
func (h *Hub) broadcastLocked(roomID, exclude string, data []byte) {
	var slow []*client
	for id, peer := range h.rooms[roomID] {
		if id == exclude {
			continue
		}
		select {
		case peer.send <- data:
		default:
			slow = append(slow, peer)
		}
	}

	for _, peer := range slow {
		util.LogWarning("[relay] %s/%s: send buffer full, disconnecting", peer.roomID, peer.id)
		if h.removeLocked(peer) {
			h.leftLocked(peer)
		}
	}
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.removeLocked(c) {
		util.LogInfo("[relay] %s left room %s", c.id, c.roomID)
		h.leftLocked(c)
	}
}

func (h *Hub) leftLocked(c *client) {
	data, err := json.Marshal(signaling.Message{Type: signaling.TypePeerLeft, Sender: c.id})
	if err != nil {
		return
	}
	h.broadcastLocked(c.roomID, c.id, data)
}

// removeLocked takes c out of its room and closes its send queue, which
// makes its write pump close the connection. It reports whether c was still
// a member. Caller holds h.mu.
func (h *Hub) removeLocked(c *client) bool {
	peers := h.rooms[c.roomID]
	if peers[c.id] != c {
		return false
	}
	delete(peers, c.id)
	if len(peers) == 0 {
		delete(h.rooms, c.roomID)
	}
	close(c.send)
	return true
}

// requestLogger logs one line per request. The query string is left out
// since it carries tokens.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		util.LogDebug("[relay] %s %s %d %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}
