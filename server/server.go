package server

import (
	"errors"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxFrame     int
}

// Server owns the listening transport, the connection registry and the
// router, and spawns one Handler goroutine per accepted connection.
type Server struct {
	config   *Config
	registry *Registry
	sessions *Sessions
	router   *Router

	listener net.Listener
	nextID   atomic.Int64
	stopping atomic.Bool
	stopOnce sync.Once
	acceptWg sync.WaitGroup
	wg       sync.WaitGroup
}

func New(store UserStore, config *Config, observer Observer) *Server {
	registry := NewRegistry()
	sessions := NewSessions()

	return &Server{
		config:   config,
		registry: registry,
		sessions: sessions,
		router:   NewRouter(registry, sessions, store, observer),
	}
}

// Start binds the listening socket on all local addresses and launches the
// accept loop. Bind failures come back to the caller; they never crash the
// process.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.Port))
	if err != nil {
		return err
	}
	s.listener = listener

	log.Printf("gochat server listening on %s", listener.Addr())

	s.acceptWg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound listener address (useful with Port 0).
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer s.acceptWg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// При остановке сервера слушающий сокет закрыт - выходим молча
			if s.stopping.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			// Временная ошибка не должна останавливать сервер
			log.Printf("Error accepting connection: %v", err)
			continue
		}

		id := s.nextID.Add(1)
		handler := newHandler(id, conn, s)
		s.registry.Register(handler)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			handler.run()
		}()
	}
}

// Stop shuts the server down: (1) stop accepting by closing the listener
// and waiting for the accept loop to exit, so every accepted connection is
// already registered, (2) close every registered transport so each blocked
// read returns, (3) wait for every handler goroutine, (4) clear the
// registry. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)

		if s.listener != nil {
			s.listener.Close()
		}
		s.acceptWg.Wait()

		for _, p := range s.registry.Snapshot() {
			p.Close()
		}

		s.wg.Wait()
		s.registry.Clear()

		log.Printf("gochat server stopped")
	})
}

// ConnectionCount returns the number of live connections.
func (s *Server) ConnectionCount() int {
	return s.registry.Count()
}

// GetStats returns server statistics as a formatted string.
func (s *Server) GetStats() string {
	return "connections=" + strconv.Itoa(s.registry.Count()) +
		",sessions=" + strconv.Itoa(s.sessions.Count())
}
