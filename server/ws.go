package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn frames the same newline-terminated line protocol inside text
// websocket messages for browser-origin clients. A buffered send channel
// plus a write pump keeps the central loop from ever blocking on a slow
// socket; when the buffer fills the line is dropped, matching the
// fire-and-forget snapshot contract.
type wsConn struct {
	conn *websocket.Conn
	send chan string
	done chan struct{}
}

func (w *wsConn) WriteLine(line string) error {
	select {
	case w.send <- line:
	default:
	}
	return nil
}

func (w *wsConn) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.conn.Close()
}

func (w *wsConn) writePump() {
	for {
		select {
		case <-w.done:
			return
		case line := <-w.send:
			_ = w.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := w.conn.WriteMessage(websocket.TextMessage, []byte(line+"\n")); err != nil {
				return
			}
		}
	}
}

// ServeWS serves the websocket transport on addr at path "/ws".
func (s *Server) ServeWS(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.logger.Info("listening", "transport", "ws", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	wc := &wsConn{conn: conn, send: make(chan string, 256), done: make(chan struct{})}
	s.Enqueue(event{kind: evConnect, conn: wc})
	go wc.writePump()
	go s.wsReadLoop(wc)
}

func (s *Server) wsReadLoop(wc *wsConn) {
	defer s.Enqueue(event{kind: evDisconnect, conn: wc})
	defer wc.Close()

	wc.conn.SetReadLimit(64 * 1024)
	for {
		msgType, data, err := wc.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				s.Enqueue(event{kind: evLine, conn: wc, line: line})
			}
		}
	}
}
