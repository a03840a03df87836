// Package server accepts client connections and runs the per-connection
// command loop that drives the registry, broker and dispatcher.
package server

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"

	"github.com/zayn-rush/rush-backend/db"
	"github.com/zayn-rush/rush-backend/internal/challenge"
	"github.com/zayn-rush/rush-backend/internal/session"
)

// Store is the slice of the persisted store the connection handlers use.
type Store interface {
	CreateAccount(ctx context.Context, username, password, car string) error
	Authenticate(ctx context.Context, username, password string) error
	Stats(ctx context.Context, username string) (db.Stats, error)
	ReportResult(ctx context.Context, player1, player2, winner string) error
}

type Server struct {
	store    Store
	registry *session.Registry
	broker   *challenge.Broker
	log      *zap.Logger
	ln       net.Listener
}

func New(store Store, registry *session.Registry, broker *challenge.Broker, log *zap.Logger) *Server {
	return &Server{
		store:    store,
		registry: registry,
		broker:   broker,
		log:      log,
	}
}

// ListenAndServe binds addr and serves until the listener is closed.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.Info("server listening", zap.String("addr", ln.Addr().String()))
	return s.Serve(ln)
}

// Serve accepts connections from ln, one handler goroutine per client.
func (s *Server) Serve(ln net.Listener) error {
	s.ln = ln
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Addr returns the bound listener address, for tests that bind port 0.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
