package admin

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gigboard/community-moderation/internal/core/domain"
	"github.com/gigboard/community-moderation/internal/moderation/events"
	"github.com/gigboard/community-moderation/internal/platform/observability"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamSendBuffer   = 32
)

// StreamEnvelope is one websocket frame: the bus event type plus the full
// serialized moderation event.
type StreamEnvelope struct {
	Type  events.Type             `json:"type"`
	Event *domain.ModerationEvent `json:"event"`
}

// Stream relays moderation bus events to websocket clients. It subscribes to
// the bus exactly once at construction; per-connection fan-out happens on
// buffered channels so a slow client drops frames instead of stalling the
// synchronous bus dispatch.
type Stream struct {
	upgrader websocket.Upgrader
	logger   *zerolog.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

type streamClient struct {
	send chan StreamEnvelope
}

// NewStream creates the relay and attaches it to the bus.
func NewStream(bus *events.Bus, logger *zerolog.Logger) *Stream {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	s := &Stream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}

	bus.Subscribe(events.TypeEventCreated, func(ev *domain.ModerationEvent) {
		s.broadcast(StreamEnvelope{Type: events.TypeEventCreated, Event: ev})
	})
	bus.Subscribe(events.TypeEventUpdated, func(ev *domain.ModerationEvent) {
		s.broadcast(StreamEnvelope{Type: events.TypeEventUpdated, Event: ev})
	})

	return s
}

func (s *Stream) broadcast(env StreamEnvelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		select {
		case client.send <- env:
		default:
			observability.StreamEventsDropped.Inc()
		}
	}
}

func (s *Stream) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")

		return
	}

	client := &streamClient{send: make(chan StreamEnvelope, streamSendBuffer)}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	observability.StreamClients.Inc()

	go s.writeLoop(conn, client)
	s.readLoop(conn, client)
}

// writeLoop pushes envelopes to the peer until the send channel closes.
func (s *Stream) writeLoop(conn *websocket.Conn, client *streamClient) {
	for env := range client.send {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))

		if err := conn.WriteJSON(env); err != nil {
			s.logger.Debug().Err(err).Msg("stream write failed")

			break
		}
	}

	_ = conn.Close()
}

// readLoop discards inbound frames; it exists to notice the peer going away.
func (s *Stream) readLoop(conn *websocket.Conn, client *streamClient) {
	defer s.drop(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Stream) drop(client *streamClient) {
	s.mu.Lock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}

	s.mu.Unlock()

	observability.StreamClients.Dec()
}
