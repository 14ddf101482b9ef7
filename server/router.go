package server

import (
	"fmt"
	"log"
	"strings"

	"gochat/models"
	"gochat/protocol"
)

// UserStore is the slice of the authentication collaborator the router
// needs: credential lookup and presence bookkeeping. Registration and
// contact management stay outside the routing core.
type UserStore interface {
	Authenticate(username, password string) (int64, bool, error)
	SetStatus(id int64, status models.UserStatus) error
}

// Observer receives every decoded message for application-level handling.
// It is invoked synchronously on the handler's own goroutine and must not
// block.
type Observer interface {
	OnMessage(connID int64, m *protocol.Message)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(connID int64, m *protocol.Message)

func (f ObserverFunc) OnMessage(connID int64, m *protocol.Message) {
	f(connID, m)
}

// Router decides unicast versus broadcast for decoded messages and performs
// delivery through the Registry. It keeps no state beyond the collaborators
// it is given.
type Router struct {
	registry *Registry
	sessions *Sessions
	store    UserStore
	observer Observer
}

func NewRouter(registry *Registry, sessions *Sessions, store UserStore, observer Observer) *Router {
	return &Router{
		registry: registry,
		sessions: sessions,
		store:    store,
		observer: observer,
	}
}

// Route dispatches one decoded message from a connection. Login and Logout
// go to the user store; Text is delivered to one recipient or broadcast to
// all; Status, File and Error carry no routing action, the observer
// callback is their delivery.
func (r *Router) Route(from Peer, m *protocol.Message) {
	if r.observer != nil {
		r.observer.OnMessage(from.ID(), m)
	}

	switch m.Kind {
	case protocol.KindLogin:
		r.handleLogin(from, m)
	case protocol.KindLogout:
		r.handleLogout(from)
	case protocol.KindText:
		// Отправителя подставляем на сервере: клиентскому полю не доверяем
		m.SenderID = r.senderID(from)
		if m.ReceiverID == protocol.NoID {
			r.broadcast(m)
		} else {
			r.unicast(from, m)
		}
	}
}

// senderID is the id receivers can reply to: the bound user id once the
// connection has logged in, the connection id before that.
func (r *Router) senderID(from Peer) int64 {
	if userID, ok := r.sessions.UserFor(from.ID()); ok {
		return userID
	}
	return from.ID()
}

func (r *Router) handleLogin(from Peer, m *protocol.Message) {
	username, secret, ok := strings.Cut(m.Content, ":")
	if !ok || username == "" {
		r.reply(from, protocol.KindError, "malformed login, want username:password")
		return
	}

	userID, valid, err := r.store.Authenticate(username, secret)
	if err != nil {
		log.Printf("Auth error for client %d: %v", from.ID(), err)
		r.reply(from, protocol.KindError, "internal error")
		return
	}
	if !valid {
		r.reply(from, protocol.KindError, "invalid credentials")
		return
	}

	// Авторизация успешна: связываем пользователя с соединением.
	// Членство в Registry при этом не меняется.
	r.sessions.Bind(userID, from.ID())
	if err := r.store.SetStatus(userID, models.StatusOnline); err != nil {
		log.Printf("Failed to mark user %d online: %v", userID, err)
	}
	r.reply(from, protocol.KindStatus, fmt.Sprintf("LOGIN_OK %d", userID))
}

func (r *Router) handleLogout(from Peer) {
	userID, ok := r.sessions.UnbindConn(from.ID())
	if !ok {
		r.reply(from, protocol.KindError, "not logged in")
		return
	}

	r.markOffline(userID)
	r.reply(from, protocol.KindStatus, "LOGOUT_OK")
}

func (r *Router) markOffline(userID int64) {
	if err := r.store.SetStatus(userID, models.StatusOffline); err != nil {
		log.Printf("Failed to mark user %d offline: %v", userID, err)
	}
}

// unicast delivers to a single addressed recipient. The receiver id is a
// user id when that user is logged in; otherwise it is tried as a raw
// connection id, so unauthenticated peers stay addressable. A miss or a
// failed write comes back to the sender as a delivery-failure Error.
func (r *Router) unicast(from Peer, m *protocol.Message) {
	connID, ok := r.sessions.ResolveUser(m.ReceiverID)
	if !ok {
		connID = m.ReceiverID
	}

	target, ok := r.registry.Lookup(connID)
	if !ok {
		r.reply(from, protocol.KindError, fmt.Sprintf("recipient %d is not connected", m.ReceiverID))
		return
	}

	if err := target.Send(m); err != nil {
		log.Printf("Unicast to connection %d failed: %v", target.ID(), err)
		r.reply(from, protocol.KindError, fmt.Sprintf("delivery to %d failed", m.ReceiverID))
	}
}

// broadcast attempts delivery to every registered connection, the sender
// included. Each attempt is independent: one slow or dead peer never aborts
// the rest.
func (r *Router) broadcast(m *protocol.Message) {
	for _, p := range r.registry.Snapshot() {
		if err := p.Send(m); err != nil {
			log.Printf("Broadcast to connection %d failed: %v", p.ID(), err)
		}
	}
}

// reply sends a server-originated message back on the same connection; the
// sender field carries the NoID sentinel. A failed reply is only logged;
// the handler will notice a dead transport on its own read.
func (r *Router) reply(from Peer, kind protocol.Kind, content string) {
	msg := protocol.NewMessage(kind, content, protocol.NoID, r.senderID(from))
	if err := from.Send(msg); err != nil {
		log.Printf("Reply to connection %d failed: %v", from.ID(), err)
	}
}
