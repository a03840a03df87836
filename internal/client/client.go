// Package client implements the thin client-side operations of the
// matchmaking protocol: the one-shot queries and the persistent
// authenticated command connection the game loop drives.
package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/zayn-rush/rush-backend/internal/protocol"
)

const dialTimeout = 5 * time.Second

// MatchStart is a parsed handoff message.
type MatchStart struct {
	MatchID      int64
	Role         string
	OpponentIP   string
	OpponentPort int
	OpponentCar  string
	OpponentName string
}

// ParseMatchStart decodes a MATCH_START push. ok is false for any
// other line.
func ParseMatchStart(line string) (MatchStart, bool) {
	parts := strings.Split(line, ":")
	if len(parts) < 7 || parts[0] != "MATCH_START" {
		return MatchStart{}, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return MatchStart{}, false
	}
	port, err := strconv.Atoi(parts[4])
	if err != nil {
		return MatchStart{}, false
	}
	return MatchStart{
		MatchID:      id,
		Role:         parts[2],
		OpponentIP:   parts[3],
		OpponentPort: port,
		OpponentCar:  parts[5],
		OpponentName: parts[6],
	}, true
}

// ListPlayers runs the one-shot G query and returns the online players,
// or an empty slice when none are active.
func ListPlayers(addr string) ([]protocol.PlayerInfo, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("G\n")); err != nil {
		return nil, err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimSpace(line)
	if line == protocol.ReplyNoActivePlayers {
		return nil, nil
	}

	var players []protocol.PlayerInfo
	if err := json.Unmarshal([]byte(line), &players); err != nil {
		return nil, fmt.Errorf("unexpected player list payload: %w", err)
	}
	return players, nil
}

// Register creates an account over a one-shot connection.
func Register(addr, username, password, car string) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "REGISTER:%s:%s:%s\n", username, password, car); err != nil {
		return err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	if strings.TrimSpace(line) != protocol.ReplyRegisterSuccess {
		return fmt.Errorf("registration rejected: %s", strings.TrimSpace(line))
	}
	return nil
}

// Conn is a live authenticated connection to the matchmaking server.
type Conn struct {
	Username string

	conn net.Conn
	r    *bufio.Reader
}

// Login opens a connection and authenticates. On success the connection
// stays open for the command loop.
func Login(addr, username, password string) (*Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}

	c := &Conn{Username: username, conn: conn, r: bufio.NewReader(conn)}
	if err := c.send(fmt.Sprintf("LOGIN:%s:%s", username, password)); err != nil {
		conn.Close()
		return nil, err
	}
	reply, err := c.ReadLine()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if reply != protocol.ReplyLoginSuccess {
		conn.Close()
		return nil, fmt.Errorf("login rejected: %s", reply)
	}
	return c, nil
}

func (c *Conn) send(line string) error {
	c.conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// ReadLine blocks for the next server line: a command reply or a push
// such as CHALLENGE_REQUEST or MATCH_START.
func (c *Conn) ReadLine() (string, error) {
	c.conn.SetReadDeadline(time.Time{})
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Challenge proposes a race against opponent, declaring the local car.
func (c *Conn) Challenge(opponent, car string) error {
	return c.send(fmt.Sprintf("CHALLENGE:%s:%s:%s", c.Username, opponent, car))
}

// Accept accepts the pending challenge, optionally overriding the
// stored car preference.
func (c *Conn) Accept(car string) error {
	line := fmt.Sprintf("CHALLENGE_RESPONSE:%s:ACCEPT", c.Username)
	if car != "" {
		line += ":" + car
	}
	return c.send(line)
}

// Reject declines the pending challenge.
func (c *Conn) Reject() error {
	return c.send(fmt.Sprintf("CHALLENGE_RESPONSE:%s:REJECT", c.Username))
}

// ReportResult reports a finished race; winner is a username or DRAW.
func (c *Conn) ReportResult(player1, player2, winner string) error {
	return c.send(fmt.Sprintf("RESULT:%s:%s:%s", player1, player2, winner))
}

// Status sends a free-form status update.
func (c *Conn) Status(text string) error {
	return c.send("STATUS:" + text)
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
