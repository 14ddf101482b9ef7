package server

import (
	"bufio"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gochat/protocol"
)

// Handler lifecycle states. Transitions only move forward:
// Accepted -> Running -> Closing -> Closed.
const (
	StateAccepted int32 = iota
	StateRunning
	StateClosing
	StateClosed
)

// Handler services one accepted connection. It exclusively owns the
// transport: the read loop, the teardown and the close all happen here,
// exactly once, regardless of how the loop exits.
type Handler struct {
	id     int64
	conn   net.Conn
	reader *bufio.Reader
	srv    *Server

	state     atomic.Int32
	sendMu    sync.Mutex
	closeOnce sync.Once
}

func newHandler(id int64, conn net.Conn, srv *Server) *Handler {
	return &Handler{
		id:     id,
		conn:   conn,
		reader: bufio.NewReader(conn),
		srv:    srv,
	}
}

func (h *Handler) ID() int64 {
	return h.id
}

// State returns the current lifecycle state.
func (h *Handler) State() int32 {
	return h.state.Load()
}

// run is the per-connection read loop. It exits on read error or EOF and
// never on a malformed record.
func (h *Handler) run() {
	remoteAddr := h.conn.RemoteAddr().String()
	log.Printf("New client %d connected from %s", h.id, remoteAddr)

	h.state.Store(StateRunning)
	defer h.teardown(remoteAddr)

	for {
		if h.srv.config.ReadTimeout > 0 {
			h.conn.SetReadDeadline(time.Now().Add(h.srv.config.ReadTimeout))
		}

		payload, err := protocol.ReadFrame(h.reader, h.srv.config.MaxFrame)
		if err != nil {
			// Таймаут - это нормально, продолжаем ждать данные
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("Error reading from client %d (%s): %v", h.id, remoteAddr, err)
			}
			// EOF или другая ошибка - закрываем соединение
			return
		}

		msg, err := protocol.Decode(payload)
		if err != nil {
			// Битая запись не фатальна: отбрасываем и читаем дальше
			log.Printf("Dropping malformed record from client %d: %v", h.id, err)
			continue
		}

		h.srv.router.Route(h, msg)
	}
}

// teardown runs exactly once on loop exit: mark inactive, unbind the
// session, unregister, close the transport.
func (h *Handler) teardown(remoteAddr string) {
	h.closeOnce.Do(func() {
		h.state.Store(StateClosing)
		if userID, ok := h.srv.sessions.UnbindConn(h.id); ok {
			h.srv.router.markOffline(userID)
		}
		h.srv.registry.Unregister(h.id)
		h.conn.Close()
		h.state.Store(StateClosed)
		log.Printf("Client %d disconnected from %s", h.id, remoteAddr)
	})
}

// Send serializes the message and writes one frame to the owned transport.
// A failed write is reported to the caller and never retried.
func (h *Handler) Send(m *protocol.Message) error {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	if h.state.Load() >= StateClosing {
		return net.ErrClosed
	}

	if h.srv.config.WriteTimeout > 0 {
		h.conn.SetWriteDeadline(time.Now().Add(h.srv.config.WriteTimeout))
	}
	return protocol.WriteFrame(h.conn, protocol.Encode(m))
}

// Close unblocks the pending read by closing the transport. The handler
// goroutine then runs its own teardown; that keeps cleanup in exactly one
// place even when shutdown races a natural disconnect.
func (h *Handler) Close() error {
	return h.conn.Close()
}
