package server

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gochat/models"
	"gochat/protocol"
)

// fakePeer records sent messages instead of writing to a transport.
type fakePeer struct {
	id       int64
	failSend bool

	mu     sync.Mutex
	sent   []*protocol.Message
	closed bool
}

func (p *fakePeer) ID() int64 { return p.id }

func (p *fakePeer) Send(m *protocol.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failSend {
		return errors.New("send failed")
	}
	p.sent = append(p.sent, m)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) messages() []*protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*protocol.Message(nil), p.sent...)
}

func (p *fakePeer) last(t *testing.T) *protocol.Message {
	t.Helper()
	msgs := p.messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

// fakeStore is an in-memory stand-in for the authentication collaborator.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]int64 // username -> id, password always "secret"
	statuses map[int64]models.UserStatus
}

func newFakeStore(users map[string]int64) *fakeStore {
	return &fakeStore{users: users, statuses: make(map[int64]models.UserStatus)}
}

func (s *fakeStore) Authenticate(username, password string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.users[username]
	if !ok || password != "secret" {
		return 0, false, nil
	}
	return id, true, nil
}

func (s *fakeStore) SetStatus(id int64, status models.UserStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
	return nil
}

func (s *fakeStore) status(id int64) models.UserStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[id]
}

func newTestRouter(store UserStore, observer Observer) (*Router, *Registry, *Sessions) {
	registry := NewRegistry()
	sessions := NewSessions()
	return NewRouter(registry, sessions, store, observer), registry, sessions
}

func TestUnicastDeliversToSingleTarget(t *testing.T) {
	router, registry, _ := newTestRouter(newFakeStore(nil), nil)

	a := &fakePeer{id: 1}
	b := &fakePeer{id: 2}
	c := &fakePeer{id: 3}
	registry.Register(a)
	registry.Register(b)
	registry.Register(c)

	router.Route(a, protocol.NewMessage(protocol.KindText, "hello", protocol.NoID, 2))

	require.Len(t, b.messages(), 1)
	assert.Equal(t, "hello", b.messages()[0].Content)
	assert.Empty(t, a.messages(), "sender gets nothing back on success")
	assert.Empty(t, c.messages())
}

func TestUnicastStampsSenderConnectionID(t *testing.T) {
	router, registry, _ := newTestRouter(newFakeStore(nil), nil)

	a := &fakePeer{id: 1}
	b := &fakePeer{id: 2}
	registry.Register(a)
	registry.Register(b)

	// The client-supplied sender id is not trusted.
	router.Route(a, protocol.NewMessage(protocol.KindText, "hi", 42, 2))

	assert.Equal(t, int64(1), b.last(t).SenderID)
}

func TestUnicastMissNotifiesSender(t *testing.T) {
	router, registry, _ := newTestRouter(newFakeStore(nil), nil)

	a := &fakePeer{id: 1}
	registry.Register(a)

	router.Route(a, protocol.NewMessage(protocol.KindText, "hello", protocol.NoID, 99))

	reply := a.last(t)
	assert.Equal(t, protocol.KindError, reply.Kind)
	assert.Contains(t, reply.Content, "99")
}

func TestUnicastSendFailureNotifiesSender(t *testing.T) {
	router, registry, _ := newTestRouter(newFakeStore(nil), nil)

	a := &fakePeer{id: 1}
	dead := &fakePeer{id: 2, failSend: true}
	registry.Register(a)
	registry.Register(dead)

	router.Route(a, protocol.NewMessage(protocol.KindText, "hello", protocol.NoID, 2))

	assert.Equal(t, protocol.KindError, a.last(t).Kind)
}

func TestBroadcastIncludesSenderAndSurvivesFailures(t *testing.T) {
	router, registry, _ := newTestRouter(newFakeStore(nil), nil)

	sender := &fakePeer{id: 1}
	dead := &fakePeer{id: 2, failSend: true}
	c := &fakePeer{id: 3}
	registry.Register(sender)
	registry.Register(dead)
	registry.Register(c)

	router.Route(sender, protocol.NewMessage(protocol.KindText, "to all", protocol.NoID, protocol.NoID))

	// Delivery is attempted to every snapshot entry, the sender included;
	// the dead peer does not abort the rest.
	require.Len(t, sender.messages(), 1)
	require.Len(t, c.messages(), 1)
	assert.Equal(t, "to all", sender.messages()[0].Content)
	assert.Equal(t, "to all", c.messages()[0].Content)
}

func TestLoginBindsSessionAndRoutesByUserID(t *testing.T) {
	store := newFakeStore(map[string]int64{"bob": 100})
	router, registry, sessions := newTestRouter(store, nil)

	bob := &fakePeer{id: 1}
	other := &fakePeer{id: 2}
	registry.Register(bob)
	registry.Register(other)

	router.Route(bob, protocol.NewMessage(protocol.KindLogin, "bob:secret", protocol.NoID, protocol.NoID))

	reply := bob.last(t)
	assert.Equal(t, protocol.KindStatus, reply.Kind)
	assert.Equal(t, "LOGIN_OK 100", reply.Content)
	assert.Equal(t, models.StatusOnline, store.status(100))

	connID, ok := sessions.ResolveUser(100)
	require.True(t, ok)
	assert.Equal(t, int64(1), connID)

	// Text addressed to the user id reaches bob's connection, stamped with
	// the user id of the logged-in sender.
	router.Route(other, protocol.NewMessage(protocol.KindText, "hi bob", protocol.NoID, 100))
	assert.Equal(t, "hi bob", bob.last(t).Content)

	router.Route(bob, protocol.NewMessage(protocol.KindText, "hi back", protocol.NoID, 2))
	assert.Equal(t, int64(100), other.last(t).SenderID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := newFakeStore(map[string]int64{"bob": 100})
	router, registry, sessions := newTestRouter(store, nil)

	bob := &fakePeer{id: 1}
	registry.Register(bob)

	router.Route(bob, protocol.NewMessage(protocol.KindLogin, "bob:wrong", protocol.NoID, protocol.NoID))
	assert.Equal(t, protocol.KindError, bob.last(t).Kind)

	router.Route(bob, protocol.NewMessage(protocol.KindLogin, "no-colon", protocol.NoID, protocol.NoID))
	assert.Equal(t, protocol.KindError, bob.last(t).Kind)

	assert.Equal(t, 0, sessions.Count())
	// The connection stays registered: membership is transport-level.
	assert.Equal(t, 1, registry.Count())
}

func TestLogout(t *testing.T) {
	store := newFakeStore(map[string]int64{"bob": 100})
	router, registry, sessions := newTestRouter(store, nil)

	bob := &fakePeer{id: 1}
	registry.Register(bob)

	router.Route(bob, protocol.NewMessage(protocol.KindLogin, "bob:secret", protocol.NoID, protocol.NoID))
	router.Route(bob, protocol.NewMessage(protocol.KindLogout, "", protocol.NoID, protocol.NoID))

	reply := bob.last(t)
	assert.Equal(t, protocol.KindStatus, reply.Kind)
	assert.Equal(t, "LOGOUT_OK", reply.Content)
	assert.Equal(t, models.StatusOffline, store.status(100))
	assert.Equal(t, 0, sessions.Count())
	assert.Equal(t, 1, registry.Count())

	// A second logout has nothing to unbind.
	router.Route(bob, protocol.NewMessage(protocol.KindLogout, "", protocol.NoID, protocol.NoID))
	assert.Equal(t, protocol.KindError, bob.last(t).Kind)
}

func TestObserverSeesEveryMessage(t *testing.T) {
	var mu sync.Mutex
	var observed []protocol.Kind

	observer := ObserverFunc(func(connID int64, m *protocol.Message) {
		mu.Lock()
		observed = append(observed, m.Kind)
		mu.Unlock()
	})

	router, registry, _ := newTestRouter(newFakeStore(nil), observer)

	a := &fakePeer{id: 1}
	b := &fakePeer{id: 2}
	registry.Register(a)
	registry.Register(b)

	router.Route(a, protocol.NewMessage(protocol.KindStatus, "away", protocol.NoID, protocol.NoID))
	router.Route(a, protocol.NewMessage(protocol.KindFile, "photo.png", protocol.NoID, protocol.NoID))
	router.Route(a, protocol.NewMessage(protocol.KindText, "hi", protocol.NoID, 2))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []protocol.Kind{protocol.KindStatus, protocol.KindFile, protocol.KindText}, observed)

	// Status and File take no structural action: nothing was delivered
	// anywhere beyond the observer callback.
	assert.Empty(t, a.messages())
	require.Len(t, b.messages(), 1)
}
