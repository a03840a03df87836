package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zayn-rush/rush-backend/db"
	"github.com/zayn-rush/rush-backend/internal/protocol"
	"github.com/zayn-rush/rush-backend/internal/session"
)

// initialReadTimeout distinguishes a one-shot stateless query from a
// login attempt. It is cleared once the client authenticates.
const initialReadTimeout = 500 * time.Millisecond

type handler struct {
	srv  *Server
	conn net.Conn
	log  *zap.Logger

	username string
	sess     *session.Session
}

func (s *Server) handleConn(conn net.Conn) {
	h := &handler{
		srv:  s,
		conn: conn,
		log: s.log.With(
			zap.String("conn_id", uuid.NewString()),
			zap.String("remote", conn.RemoteAddr().String()),
		),
	}
	h.run()
}

func (h *handler) run() {
	defer h.cleanup()

	scanner := bufio.NewScanner(h.conn)

	h.conn.SetReadDeadline(time.Now().Add(initialReadTimeout))
	if !scanner.Scan() {
		return
	}
	h.conn.SetReadDeadline(time.Time{})

	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return
	}

	cmd, err := protocol.Parse(line)
	if err != nil {
		h.reply(protocol.ReplyInvalidFormat)
		return
	}

	ctx := context.Background()
	switch cmd.Kind {
	case protocol.KindList:
		h.sendPlayerList(ctx)
		return

	case protocol.KindRegister:
		if err := h.srv.store.CreateAccount(ctx, cmd.Username, cmd.Password, cmd.Car); err != nil {
			h.log.Info("registration failed", zap.String("username", cmd.Username), zap.Error(err))
			h.reply(protocol.ReplyRegisterFailed)
		} else {
			h.log.Info("player registered", zap.String("username", cmd.Username))
			h.reply(protocol.ReplyRegisterSuccess)
		}
		return

	case protocol.KindLogin:
		if err := h.srv.store.Authenticate(ctx, cmd.Username, cmd.Password); err != nil {
			h.log.Info("login failed", zap.String("username", cmd.Username))
			h.reply(protocol.ReplyLoginFailed)
			return
		}
		h.username = cmd.Username
		h.sess = session.NewSession(cmd.Username, h.conn, remoteIP(h.conn))
		// Register before the success reply so a challenge sent right
		// after the client sees LOGIN_SUCCESS can't miss the session.
		h.srv.registry.Register(h.sess)
		h.log = h.log.With(zap.String("username", cmd.Username))
		h.log.Info("player logged in")
		if err := h.sess.Push(protocol.ReplyLoginSuccess); err != nil {
			return
		}

	default:
		h.reply(protocol.ReplyInvalidRequest)
		return
	}

	h.commandLoop(ctx, scanner)
}

// commandLoop reads authenticated commands until the peer disconnects
// or a read error occurs.
func (h *handler) commandLoop(ctx context.Context, scanner *bufio.Scanner) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return
		}

		cmd, err := protocol.Parse(line)
		if err != nil {
			h.push(protocol.ReplyInvalidCommand)
			continue
		}

		switch cmd.Kind {
		case protocol.KindChallenge:
			reply := h.srv.broker.Challenge(cmd.Challenger, cmd.Challenged, cmd.Car)
			if h.push(reply) != nil {
				return
			}

		case protocol.KindRespond:
			h.srv.broker.Respond(ctx, cmd.Responder, cmd.Accept, cmd.Car)

		case protocol.KindResult:
			if err := h.srv.store.ReportResult(ctx, cmd.Player1, cmd.Player2, cmd.Winner); err != nil {
				h.log.Error("result update failed",
					zap.String("player1", cmd.Player1),
					zap.String("player2", cmd.Player2),
					zap.Error(err))
			}
			if h.push(protocol.ReplyResultUpdated) != nil {
				return
			}

		case protocol.KindStatus:
			if h.push(protocol.ReplyStatusUpdated) != nil {
				return
			}

		default:
			if h.push(protocol.ReplyInvalidCommand) != nil {
				return
			}
		}
	}
}

// sendPlayerList answers the stateless G query with the enriched
// registry snapshot. Stats lookups happen outside any registry lock.
func (h *handler) sendPlayerList(ctx context.Context) {
	sessions := h.srv.registry.Snapshot()

	players := make([]protocol.PlayerInfo, 0, len(sessions))
	for _, sess := range sessions {
		stats, err := h.srv.store.Stats(ctx, sess.Username)
		if err != nil {
			stats = db.Stats{Car: "N/A"}
		}
		players = append(players, protocol.PlayerInfo{
			Username:    sess.Username,
			DisplayName: sess.Username,
			Car:         stats.Car,
			Wins:        stats.Wins,
			Games:       stats.Games,
			LastLogin:   stats.LastLogin,
		})
	}

	if len(players) == 0 {
		h.reply(protocol.ReplyNoActivePlayers)
		return
	}
	payload, err := json.Marshal(players)
	if err != nil {
		h.log.Error("failed to marshal player list", zap.Error(err))
		return
	}
	h.reply(string(payload))
}

// reply writes directly to the connection. Only valid before a session
// exists; afterwards all writes go through the session so they can't
// interleave with pushes from other goroutines.
func (h *handler) reply(line string) {
	h.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.WriteString(h.conn, line+"\n"); err != nil {
		h.log.Debug("reply failed", zap.Error(err))
	}
}

func (h *handler) push(line string) error {
	err := h.sess.Push(line)
	if err != nil {
		h.log.Debug("push failed", zap.Error(err))
	}
	return err
}

// cleanup runs on every exit path: drop the session (only if this
// handler still owns it), resolve challenges involving this player,
// close the socket.
func (h *handler) cleanup() {
	if h.username != "" {
		h.srv.registry.RemoveSession(h.username, h.sess)
		h.srv.broker.Disconnect(h.username)
		h.log.Info("player disconnected")
	}
	h.conn.Close()
}

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
