package status

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/eventbus"
)

// Broadcast queues e for every websocket client. Slow clients drop events.
func (s *Server) Broadcast(e eventbus.Event) {
	msg := Message{Type: string(e.Type), Time: e.Time, Data: e.Data}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.clients {
		select {
		case ch <- msg:
		default:
			log.Debug().Str("event_type", msg.Type).Msg("Websocket client lagging, dropping event")
		}
	}
}

// Subscribe forwards every controller event on bus to websocket clients.
func (s *Server) Subscribe(bus *eventbus.Bus) {
	bus.SubscribeAll(s.Broadcast)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error().Err(err).Msg("Websocket accept error")
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ch := make(chan Message, clientBuffer)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	log.Info().Str("remote", r.RemoteAddr).Msg("Websocket connected")

	// Clients only listen; CloseRead discards input and ends ctx on disconnect.
	ctx := conn.CloseRead(r.Context())

	hello := Message{Type: "status", Time: time.Now(), Data: s.deps.Controller.Snapshot()}
	if err := s.write(ctx, conn, hello); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("remote", r.RemoteAddr).Msg("Websocket disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := s.write(ctx, conn, msg); err != nil {
				log.Debug().Err(err).Msg("Websocket write error")
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

// closeClients ends every stream so shutdown does not wait on hijacked connections.
func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, ch := range s.clients {
		close(ch)
		delete(s.clients, conn)
	}
}
