// Package realtime pushes chat events to connected users over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"

	"github.com/louisbranch/rebazzar/internal/services/chat/domain"
)

const (
	writeTimeout           = 5 * time.Second
	maxDecodeErrorsPerConn = 5
	maxFramesPerSecond     = 20
)

// Authenticator resolves the user behind an upgrade request.
type Authenticator func(r *http.Request) (userID string, err error)

type userIDContextKey struct{}

type peer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	encoder *json.Encoder
}

func (p *peer) writeFrame(frame Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.encoder.Encode(frame)
}

// Hub tracks open connections per user. It implements domain.Publisher.
type Hub struct {
	mu     sync.Mutex
	peers  map[string]map[*peer]struct{}
	logger zerolog.Logger
	gauge  prometheus.Gauge
}

// NewHub creates an empty hub. gauge may be nil.
func NewHub(logger zerolog.Logger, gauge prometheus.Gauge) *Hub {
	return &Hub{
		peers:  make(map[string]map[*peer]struct{}),
		logger: logger.With().Str("component", "realtime").Logger(),
		gauge:  gauge,
	}
}

var _ domain.Publisher = (*Hub)(nil)

// Publish sends event to every connection of userID.
func (h *Hub) Publish(_ context.Context, userID string, event domain.Event) {
	frame, ok := eventFrame(event)
	if !ok {
		return
	}
	for _, p := range h.snapshot(userID) {
		if err := p.writeFrame(frame); err != nil {
			h.logger.Debug().Err(err).Str("user_id", userID).Str("type", frame.Type).Msg("drop realtime frame")
		}
	}
}

// Connections returns the number of open connections for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers[userID])
}

func (h *Hub) snapshot(userID string) []*peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.peers[userID]
	peers := make([]*peer, 0, len(set))
	for p := range set {
		peers = append(peers, p)
	}
	return peers
}

func (h *Hub) join(userID string, p *peer) {
	h.mu.Lock()
	set, ok := h.peers[userID]
	if !ok {
		set = make(map[*peer]struct{})
		h.peers[userID] = set
	}
	set[p] = struct{}{}
	h.mu.Unlock()
	if h.gauge != nil {
		h.gauge.Inc()
	}
}

func (h *Hub) leave(userID string, p *peer) {
	h.mu.Lock()
	set := h.peers[userID]
	_, present := set[p]
	delete(set, p)
	if len(set) == 0 {
		delete(h.peers, userID)
	}
	h.mu.Unlock()
	if present && h.gauge != nil {
		h.gauge.Dec()
	}
}

// Handler authenticates the upgrade request and then serves the socket.
// onUnauthorized writes the rejection response.
func (h *Hub) Handler(authenticate Authenticator, onUnauthorized func(http.ResponseWriter, error)) http.Handler {
	wsHandler := websocket.Handler(h.serveConn)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticate(r)
		if err == nil && strings.TrimSpace(userID) == "" {
			err = errors.New("empty user id")
		}
		if err != nil {
			h.logger.Info().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket unauthorized")
			onUnauthorized(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userIDContextKey{}, strings.TrimSpace(userID))
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Hub) serveConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()
	userID, _ := conn.Request().Context().Value(userIDContextKey{}).(string)
	if userID == "" {
		return
	}
	p := &peer{conn: conn, encoder: json.NewEncoder(conn)}
	h.join(userID, p)
	defer h.leave(userID, p)

	_ = p.writeFrame(Frame{Type: "ready", Payload: map[string]string{"user_id": userID}})

	decoder := json.NewDecoder(conn)
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0
	for {
		var frame Frame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
				return
			}
			decodeErrors++
			_ = p.writeFrame(errorFrame("invalid frame payload"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			decoder = json.NewDecoder(conn)
			continue
		}
		decodeErrors = 0

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = p.writeFrame(errorFrame("rate limit exceeded"))
			return
		}

		switch frame.Type {
		case "ping":
			_ = p.writeFrame(Frame{Type: "pong"})
		default:
			_ = p.writeFrame(errorFrame("unsupported frame type"))
		}
	}
}

func errorFrame(message string) Frame {
	return Frame{Type: "error", Payload: map[string]string{"message": message}}
}
