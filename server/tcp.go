package server

import (
	"bufio"
	"net"
	"time"
)

// tcpConn adapts a raw TCP connection to session.LineWriter. WriteLine is
// only ever called from the central loop; the short write deadline keeps
// a stalled consumer from blocking it. A slow consumer may miss snapshots
// but never stalls the engine.
type tcpConn struct {
	conn net.Conn
}

func (t *tcpConn) WriteLine(line string) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, err := t.conn.Write(append([]byte(line), '\n'))
	return err
}

func (t *tcpConn) Close() error { return t.conn.Close() }

// ServeTCP accepts connections on addr and pumps their lines into the
// central loop until the listener fails.
func (s *Server) ServeTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("listening", "transport", "tcp", "addr", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		tc := &tcpConn{conn: conn}
		s.Enqueue(event{kind: evConnect, conn: tc})
		go s.readLoop(tc)
	}
}

func (s *Server) readLoop(tc *tcpConn) {
	defer s.Enqueue(event{kind: evDisconnect, conn: tc})

	scanner := bufio.NewScanner(tc.conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for scanner.Scan() {
		s.Enqueue(event{kind: evLine, conn: tc, line: scanner.Text()})
	}
}
