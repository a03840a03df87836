// Package match logs accepted challenges and hands both players the
// connection details for their direct sync channel.
package match

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zayn-rush/rush-backend/db"
	"github.com/zayn-rush/rush-backend/internal/protocol"
	"github.com/zayn-rush/rush-backend/internal/session"
)

// Peer sync roles as they appear in the handoff message. The responder
// of a challenge always hosts; the challenger always dials.
const (
	RoleHost = "server"
	RoleDial = "client"
)

type Store interface {
	CreateMatch(ctx context.Context, player1, player2 string) (int64, error)
	Stats(ctx context.Context, username string) (db.Stats, error)
}

type Dispatcher struct {
	store    Store
	registry *session.Registry
	peerPort int
	log      *zap.Logger
}

func NewDispatcher(store Store, registry *session.Registry, peerPort int, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		registry: registry,
		peerPort: peerPort,
		log:      log,
	}
}

// Start logs a Pending match and pushes the MATCH_START handoff to both
// sides. The responder (host) is notified first: if that push fails the
// match setup is aborted and the challenger never hears about it. If
// only the challenger push fails, the responder is already listening
// and will give up on its own when nothing connects.
func (d *Dispatcher) Start(ctx context.Context, challenger, challengerCar, responder, responderCar string) error {
	challengerSess := d.registry.Lookup(challenger)
	responderSess := d.registry.Lookup(responder)
	if challengerSess == nil || responderSess == nil {
		return fmt.Errorf("player disconnected before match start")
	}

	if responderCar == "" {
		responderCar = protocol.DefaultCar
		if stats, err := d.store.Stats(ctx, responder); err == nil && stats.Car != "" {
			responderCar = stats.Car
		}
	}

	matchID, err := d.store.CreateMatch(ctx, challenger, responder)
	if err != nil {
		return fmt.Errorf("failed to create match record: %w", err)
	}

	handoff := protocol.MatchStart(matchID, RoleHost, challengerSess.Addr, d.peerPort, challengerCar, challenger)
	if err := responderSess.Push(handoff); err != nil {
		d.log.Error("failed to deliver handoff to responder",
			zap.Int64("match_id", matchID),
			zap.String("responder", responder),
			zap.Error(err))
		return nil
	}

	handoff = protocol.MatchStart(matchID, RoleDial, responderSess.Addr, d.peerPort, responderCar, responder)
	if err := challengerSess.Push(handoff); err != nil {
		// The responder was already told to wait for a connection.
		d.log.Error("failed to deliver handoff to challenger",
			zap.Int64("match_id", matchID),
			zap.String("challenger", challenger),
			zap.Error(err))
	}

	d.log.Info("match started",
		zap.Int64("match_id", matchID),
		zap.String("challenger", challenger),
		zap.String("responder", responder))
	return nil
}
