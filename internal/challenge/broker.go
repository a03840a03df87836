// Package challenge negotiates one-to-one race challenges between
// online sessions.
package challenge

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/zayn-rush/rush-backend/internal/match"
	"github.com/zayn-rush/rush-backend/internal/protocol"
	"github.com/zayn-rush/rush-backend/internal/session"
)

// pending describes one outstanding challenge, keyed by the challenged
// username. A player can be the target of at most one challenge at a
// time, but may have issued several to different targets.
type pending struct {
	challenger string
	car        string
}

type Broker struct {
	registry   *session.Registry
	dispatcher *match.Dispatcher
	log        *zap.Logger

	mu      sync.Mutex
	pending map[string]pending
}

func NewBroker(registry *session.Registry, dispatcher *match.Dispatcher, log *zap.Logger) *Broker {
	return &Broker{
		registry:   registry,
		dispatcher: dispatcher,
		log:        log,
		pending:    make(map[string]pending),
	}
}

// Challenge proposes a match from challenger to challenged and returns
// the reply for the challenger. Network pushes happen outside the
// pending-map lock.
func (b *Broker) Challenge(challenger, challenged, car string) string {
	if challenged == "" || challenged == challenger {
		return protocol.ReplyOpponentNotAvailable
	}
	target := b.registry.Lookup(challenged)
	if target == nil {
		return protocol.ReplyOpponentNotAvailable
	}

	b.mu.Lock()
	if _, busy := b.pending[challenged]; busy {
		b.mu.Unlock()
		return protocol.ReplyOpponentNotAvailable
	}
	b.pending[challenged] = pending{challenger: challenger, car: car}
	b.mu.Unlock()

	if err := target.Push(protocol.ChallengeRequest(challenger)); err != nil {
		// Target unreachable: roll back both the session and the
		// challenge we just inserted.
		b.registry.RemoveSession(challenged, target)
		b.mu.Lock()
		delete(b.pending, challenged)
		b.mu.Unlock()
		b.log.Info("challenge push failed, target dropped",
			zap.String("challenged", challenged),
			zap.Error(err))
		return protocol.ReplyOpponentNotAvailable
	}
	return protocol.ReplyChallengeSent
}

// Respond resolves the challenge targeting responder. A response with
// no matching challenge is silently ignored. carOverride is the
// responder's live car choice; empty means use the stored preference.
func (b *Broker) Respond(ctx context.Context, responder string, accept bool, carOverride string) {
	b.mu.Lock()
	entry, ok := b.pending[responder]
	if ok {
		delete(b.pending, responder)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	if !accept {
		if challengerSess := b.registry.Lookup(entry.challenger); challengerSess != nil {
			if err := challengerSess.Push(protocol.ReplyChallengeRejected); err != nil {
				b.log.Info("failed to notify challenger of rejection",
					zap.String("challenger", entry.challenger),
					zap.Error(err))
			}
		}
		return
	}

	// Either side may have disconnected between the challenge and this
	// response. Re-validate before committing to a match.
	challengerSess := b.registry.Lookup(entry.challenger)
	responderSess := b.registry.Lookup(responder)
	if challengerSess == nil || responderSess == nil {
		for _, s := range []*session.Session{challengerSess, responderSess} {
			if s != nil {
				_ = s.Push(protocol.ReplyOpponentNotAvailable)
			}
		}
		return
	}

	if err := b.dispatcher.Start(ctx, entry.challenger, entry.car, responder, carOverride); err != nil {
		b.log.Error("match dispatch failed",
			zap.String("challenger", entry.challenger),
			zap.String("responder", responder),
			zap.Error(err))
	}
}

// Disconnect cleans up every challenge involving username: the one
// targeting it (its challenger is told the opponent is gone) and all
// the ones it issued (each target is told the same).
func (b *Broker) Disconnect(username string) {
	var notify []string

	b.mu.Lock()
	if entry, ok := b.pending[username]; ok {
		delete(b.pending, username)
		notify = append(notify, entry.challenger)
	}
	for target, entry := range b.pending {
		if entry.challenger == username {
			delete(b.pending, target)
			notify = append(notify, target)
		}
	}
	b.mu.Unlock()

	for _, name := range notify {
		if s := b.registry.Lookup(name); s != nil {
			_ = s.Push(protocol.ReplyOpponentNotAvailable)
		}
	}
}

// HasPending reports whether username is currently the target of a
// challenge.
func (b *Broker) HasPending(username string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.pending[username]
	return ok
}
