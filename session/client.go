package session

import (
	"time"
)

// LineWriter is the transport half of a client connection: the session
// layer only ever writes whole protocol lines and closes. Both the TCP
// and the websocket transports implement it.
type LineWriter interface {
	WriteLine(line string) error
	Close() error
}

// ClientState is the connection handshake progression: Connected, then
// Introduced (PCLIENT accepted), then SentInfo (INFO received), then
// Authed (AUTH accepted).
type ClientState int

const (
	StateConnected ClientState = iota
	StateIntroduced
	StateSentInfo
	StateAuthed
)

// Client is one connected session.
type Client struct {
	CID      int64
	UUID     string
	Name     string
	Location string

	state   ClientState
	version int
	conn    LineWriter

	// chat flood control
	chatTimes  []time.Time
	mutedUntil time.Time

	closing bool
}

func (c *Client) State() ClientState { return c.state }

func (c *Client) send(line string) {
	if c.conn == nil || c.closing {
		return
	}
	// fire-and-forget: a failed write means the reader side will notice
	// the broken connection and run the disconnect path
	_ = c.conn.WriteLine(line)
}

// floodCheck records a chat and reports whether the client just crossed
// the flood threshold. A muted client stays muted until mutedUntil.
func (c *Client) floodCheck(now time.Time, perInterval int, interval, mute time.Duration) (muted bool) {
	if now.Before(c.mutedUntil) {
		return true
	}
	cutoff := now.Add(-interval)
	kept := c.chatTimes[:0]
	for _, t := range c.chatTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.chatTimes = append(kept, now)
	if len(c.chatTimes) > perInterval {
		c.mutedUntil = now.Add(mute)
		c.chatTimes = c.chatTimes[:0]
		return true
	}
	return false
}
