package main

import (
	"bufio"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gochat/config"
	"gochat/db"
	"gochat/protocol"
	"gochat/server"
)

const controlSocketPath = "/tmp/gochat.sock"

func main() {
	cfg := config.Load()

	store, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize user store: %v", err)
	}
	defer store.Close()

	srvConfig := &server.Config{
		Port:         cfg.Port,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		MaxFrame:     cfg.MaxFrame,
	}

	// Наблюдатель по умолчанию просто пишет входящие сообщения в лог
	observer := server.ObserverFunc(func(connID int64, m *protocol.Message) {
		if m.Kind == protocol.KindLogin {
			// Не логируем содержимое login-пакетов (там пароль)
			log.Printf("Observed LOGIN from connection %d", connID)
			return
		}
		log.Printf("Observed %s from connection %d (receiver %d)", m.Kind, connID, m.ReceiverID)
	})

	srv := server.New(store, srvConfig, observer)

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Start control socket for management commands
	go startControlSocket(srv)

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Printf("Received signal %v, shutting down...", sig)
	srv.Stop()
	os.Remove(controlSocketPath)
}

func startControlSocket(srv *server.Server) {
	// Remove existing socket file
	os.Remove(controlSocketPath)

	listener, err := net.Listen("unix", controlSocketPath)
	if err != nil {
		log.Printf("Failed to create control socket: %v", err)
		return
	}
	defer listener.Close()
	defer os.Remove(controlSocketPath)

	log.Printf("Control socket listening on %s", controlSocketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			continue
		}

		go handleControlCommand(srv, conn)
	}
}

func handleControlCommand(srv *server.Server, conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return
	}

	switch strings.TrimSpace(line) {
	case "stats":
		conn.Write([]byte("OK|" + srv.GetStats() + "\n"))

	case "shutdown":
		conn.Write([]byte("OK|Shutting down\n"))
		conn.Close()

		log.Printf("Shutdown requested via control socket")
		srv.Stop()

		os.Remove(controlSocketPath)
		os.Exit(0)

	default:
		conn.Write([]byte("ERROR|Unknown command\n"))
	}
}
