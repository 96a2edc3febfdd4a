package relay

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"chatcore/internal/domain"
)

const (
	streamBuffer       = 16
	streamWriteTimeout = 10 * time.Second
)

// hub fans new messages out to the streams open on each conversation.
type hub struct {
	mu     sync.Mutex
	subs   map[domain.ConversationID]map[chan domain.IncomingMessage]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[domain.ConversationID]map[chan domain.IncomingMessage]struct{})}
}

// subscribe returns a channel of messages for id and a func that ends the
// subscription.
func (h *hub) subscribe(id domain.ConversationID) (<-chan domain.IncomingMessage, func()) {
	ch := make(chan domain.IncomingMessage, streamBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	if h.subs[id] == nil {
		h.subs[id] = make(map[chan domain.IncomingMessage]struct{})
	}
	h.subs[id][ch] = struct{}{}
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[id][ch]; ok {
			delete(h.subs[id], ch)
			close(ch)
		}
	}
}

// publish delivers msg to every subscriber of id. A subscriber whose buffer
// is full misses the message and has to refetch.
func (h *hub) publish(id domain.ConversationID, msg domain.IncomingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[id] {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, subs := range h.subs {
		for ch := range subs {
			close(ch)
		}
		delete(h.subs, id)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, p principal) {
	id := domain.ConversationID(mux.Vars(r)["id"])
	if _, err := s.memberConversation(r.Context(), p.user, id); err != nil {
		s.writeError(w, err)
		return
	}
	// Subscribe first so nothing posted after the handshake is missed.
	msgs, cancel := s.streams.subscribe(id)
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("Error upgrading to WebSocket: %v", err)
		return
	}
	defer conn.Close()

	// The client never sends; reading only detects that it went away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.log.Infof("User %d streaming conversation %s", p.user, id)
	for {
		select {
		case <-gone:
			return
		case m, ok := <-msgs:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"),
					time.Now().Add(streamWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(m); err != nil {
				s.log.Errorf("Error streaming message %d to user %d: %v", m.ID, p.user, err)
				return
			}
		}
	}
}

// Stream delivers messages posted to conversationID from now on. The
// channel is closed when ctx is done or the connection ends.
func (c *Client) Stream(ctx context.Context, conversationID domain.ConversationID) (<-chan domain.IncomingMessage, error) {
	auth, err := c.authorization()
	if err != nil {
		return nil, err
	}
	path := "/conversations/" + url.PathEscape(conversationID.String()) + "/stream"
	u := "ws" + strings.TrimPrefix(c.Base, "http") + path
	header := http.Header{}
	header.Set("Authorization", auth)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, statusError(http.MethodGet, path, resp)
		}
		return nil, err
	}

	out := make(chan domain.IncomingMessage)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			var m domain.IncomingMessage
			if err := conn.ReadJSON(&m); err != nil {
				c.log.WithError(err).Debug("stream ended")
				return
			}
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
