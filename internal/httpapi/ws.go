package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

const (
	wsWriteWait  = 10 * time.Second
	wsMaxMessage = 8 << 20
)

// wsRequest is one inbound UI event.
type wsRequest struct {
	Type string   `json:"type"`
	Text string   `json:"text,omitempty"`
	Ref  string   `json:"ref,omitempty"`
	Refs []string `json:"refs,omitempty"`
}

// wsReply answers a request that has a direct result. Events that arrive
// later are sent as Event messages.
type wsReply struct {
	Type    string `json:"type"`
	Request string `json:"request"`
	OK      bool   `json:"ok"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleWebSocket carries the editor's inbound events and the session's
// outbound events over one connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotImplemented, "event stream is not configured")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessage)

	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan any, subscriberBuffer)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.wsWriter(ctx, conn, events, out)
	}()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("WebSocket read failed: %v", err)
			}
			break
		}
		if reply, ok := s.dispatch(ctx, req); ok {
			select {
			case out <- reply:
			case <-ctx.Done():
			}
		}
	}
	cancel()
	<-writerDone
}

func (s *Server) wsWriter(ctx context.Context, conn *websocket.Conn, events <-chan Event, out <-chan any) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(v) == nil
	}
	if !write(map[string]any{"type": "snapshot", "snapshot": s.app.Session.Snapshot()}) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		case ev, ok := <-events:
			if !ok || !write(ev) {
				return
			}
		case v := <-out:
			if !write(v) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// dispatch applies one inbound event. The bool is false when there is nothing
// to reply; text changes answer through the highlight events.
func (s *Server) dispatch(ctx context.Context, req wsRequest) (wsReply, bool) {
	sess := s.app.Session
	reply := wsReply{Type: "reply", Request: req.Type, OK: true}

	switch strings.ToLower(req.Type) {
	case "text_changed":
		sess.OnTextChanged(req.Text)
		return reply, false
	case "translate":
		if err := sess.OnTranslateRequested(); err != nil {
			reply.OK, reply.Error = false, err.Error()
		}
	case "undo":
		reply.Text, reply.OK = sess.OnUndoRequested()
	case "redo":
		reply.Text, reply.OK = sess.OnRedoRequested()
	case "open":
		if err := sess.OpenChapter(ctx, req.Ref); err != nil {
			reply.OK, reply.Error = false, err.Error()
		} else {
			reply.Text = sess.Snapshot().Text
		}
	case "batch":
		if _, err := sess.OnBatchRequested(ctx, req.Refs); err != nil {
			reply.OK, reply.Error = false, err.Error()
		}
	case "flush":
		if err := sess.Flush(ctx); err != nil {
			reply.OK, reply.Error = false, err.Error()
		}
	default:
		reply.OK, reply.Error = false, "unknown request type"
	}
	return reply, true
}
