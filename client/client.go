// Package client implements the connecting side of the messaging fabric:
// one outbound connection, a dedicated receive loop and an observer for
// decoded messages and connection errors.
package client

import (
	"bufio"
	"errors"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"gochat/protocol"
)

// ErrNotConnected is returned by Send before Connect or after Disconnect.
var ErrNotConnected = errors.New("not connected")

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 30 * time.Second
)

// Observer receives decoded messages and connection errors. Callbacks run
// synchronously on the receive-loop goroutine and must not block. No
// callback fires after Disconnect has returned.
type Observer interface {
	OnMessage(m *protocol.Message)
	OnError(desc string)
}

// ObserverFuncs adapts plain functions to Observer; nil fields are skipped.
type ObserverFuncs struct {
	Message func(m *protocol.Message)
	Error   func(desc string)
}

func (o ObserverFuncs) OnMessage(m *protocol.Message) {
	if o.Message != nil {
		o.Message(m)
	}
}

func (o ObserverFuncs) OnError(desc string) {
	if o.Error != nil {
		o.Error(desc)
	}
}

// Client is a single-peer mirror of the server's connection handler.
type Client struct {
	observer Observer
	maxFrame int

	sendMu sync.Mutex

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	done      chan struct{}
	userID    int64
}

func New(observer Observer) *Client {
	return &Client{
		observer: observer,
		maxFrame: protocol.DefaultMaxFrame,
		userID:   protocol.NoID,
	}
}

// Connect establishes the transport and starts the receive loop. On failure
// no loop is started. Connecting twice is a no-op.
func (c *Client) Connect(host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return err
	}

	c.conn = conn
	c.connected = true
	c.done = make(chan struct{})

	go c.receiveLoop(conn, bufio.NewReader(conn), c.done)
	return nil
}

// Connected reports whether the client currently holds a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// UserID returns the id stamped into outgoing messages (NoID before login).
func (c *Client) UserID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// SetUserID records the id assigned by the server's login reply. The core
// does not parse the reply itself; the embedding application observes it
// and calls back here.
func (c *Client) SetUserID(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = id
}

// receiveLoop mirrors the server handler's read loop: frame read, decode,
// observer callback. A malformed record is discarded; a read error ends the
// loop and reports the error only if the client still considered itself
// connected.
func (c *Client) receiveLoop(conn net.Conn, reader *bufio.Reader, done chan struct{}) {
	defer close(done)

	for {
		payload, err := protocol.ReadFrame(reader, c.maxFrame)
		if err != nil {
			c.mu.Lock()
			wasConnected := c.connected && c.conn == conn
			if wasConnected {
				c.connected = false
			}
			c.mu.Unlock()

			if wasConnected && c.observer != nil {
				c.observer.OnError("connection lost: " + err.Error())
			}
			return
		}

		msg, err := protocol.Decode(payload)
		if err != nil {
			log.Printf("Dropping malformed record from server: %v", err)
			continue
		}

		if c.observer != nil {
			c.observer.OnMessage(msg)
		}
	}
}

// Send serializes the message and writes one frame. A write failure is
// returned to the caller and never retried.
func (c *Client) Send(m *protocol.Message) error {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return protocol.WriteFrame(conn, protocol.Encode(m))
}

// Login sends a Login message with username:secret content. The result
// arrives asynchronously as a Status (LOGIN_OK) or Error message.
func (c *Client) Login(username, secret string) error {
	return c.Send(protocol.NewMessage(protocol.KindLogin, username+":"+secret, protocol.NoID, protocol.NoID))
}

// Logout sends a Logout message.
func (c *Client) Logout() error {
	return c.Send(protocol.NewMessage(protocol.KindLogout, "", c.UserID(), protocol.NoID))
}

// SendText sends a Text message; receiverID protocol.NoID broadcasts to
// every connected peer.
func (c *Client) SendText(content string, receiverID int64) error {
	return c.Send(protocol.NewMessage(protocol.KindText, content, c.UserID(), receiverID))
}

// Disconnect closes the transport and waits for the receive loop to finish,
// so no observer callback fires after it returns. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.connected = false
	conn := c.conn
	done := c.done
	c.conn = nil
	c.done = nil
	c.userID = protocol.NoID
	c.mu.Unlock()

	if conn != nil {
		// Закрытие сокета снимает блокировку с чтения в receiveLoop
		conn.Close()
	}
	if done != nil {
		<-done
	}
}
