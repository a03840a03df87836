// Package protocol defines the line-oriented command vocabulary spoken
// between the race clients and the matchmaking server, plus the parser
// that turns raw lines into tagged commands.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Server replies. Clients match these verbatim, so they never change.
const (
	ReplyLoginSuccess         = "LOGIN_SUCCESS"
	ReplyLoginFailed          = "LOGIN_FAILED"
	ReplyRegisterSuccess      = "REGISTER_SUCCESS"
	ReplyRegisterFailed       = "REGISTER_FAILED"
	ReplyChallengeSent        = "CHALLENGE_SENT"
	ReplyOpponentNotAvailable = "OPPONENT_NOT_AVAILABLE"
	ReplyChallengeRejected    = "CHALLENGE_REJECTED"
	ReplyResultUpdated        = "RESULT_UPDATED"
	ReplyStatusUpdated        = "STATUS_UPDATED"
	ReplyInvalidFormat        = "INVALID_FORMAT"
	ReplyInvalidRequest       = "INVALID_REQUEST"
	ReplyInvalidCommand       = "INVALID_COMMAND"
	ReplyNoActivePlayers      = "No active players"
)

// DefaultCar is used when a client omits its car choice.
const DefaultCar = "A"

// Draw is the winner field value a client sends for a drawn race.
const Draw = "DRAW"

type Kind int

const (
	KindUnknown Kind = iota
	KindList
	KindLogin
	KindRegister
	KindChallenge
	KindRespond
	KindResult
	KindStatus
)

// ErrMalformed marks a recognized command with too few fields.
var ErrMalformed = errors.New("malformed command")

// Command is a parsed client line. Only the fields for the given Kind
// are populated.
type Command struct {
	Kind Kind

	// Login / Register
	Username string
	Password string
	Car      string

	// Challenge / Respond
	Challenger string
	Challenged string
	Responder  string
	Accept     bool

	// Result
	Player1 string
	Player2 string
	Winner  string

	// Status
	Status string
}

// Parse classifies one trimmed input line. A recognized command with
// missing fields returns ErrMalformed; an unrecognized line returns
// KindUnknown with a nil error.
func Parse(line string) (Command, error) {
	if strings.EqualFold(line, "G") {
		return Command{Kind: KindList}, nil
	}

	parts := strings.Split(line, ":")
	switch parts[0] {
	case "LOGIN":
		if len(parts) < 3 {
			return Command{Kind: KindLogin}, ErrMalformed
		}
		return Command{Kind: KindLogin, Username: parts[1], Password: parts[2]}, nil

	case "REGISTER":
		if len(parts) < 4 {
			return Command{Kind: KindRegister}, ErrMalformed
		}
		car := parts[3]
		if car == "" {
			car = DefaultCar
		}
		return Command{Kind: KindRegister, Username: parts[1], Password: parts[2], Car: car}, nil

	case "CHALLENGE":
		if len(parts) < 3 {
			return Command{Kind: KindChallenge}, ErrMalformed
		}
		car := DefaultCar
		if len(parts) >= 4 {
			car = parts[3]
		}
		return Command{Kind: KindChallenge, Challenger: parts[1], Challenged: parts[2], Car: car}, nil

	case "CHALLENGE_RESPONSE":
		if len(parts) < 3 {
			return Command{Kind: KindRespond}, ErrMalformed
		}
		var accept bool
		switch strings.ToUpper(parts[2]) {
		case "ACCEPT":
			accept = true
		case "REJECT":
			accept = false
		default:
			return Command{Kind: KindRespond}, ErrMalformed
		}
		car := ""
		if len(parts) >= 4 {
			car = parts[3]
		}
		return Command{Kind: KindRespond, Responder: parts[1], Accept: accept, Car: car}, nil

	case "RESULT":
		if len(parts) < 4 {
			return Command{Kind: KindResult}, ErrMalformed
		}
		return Command{Kind: KindResult, Player1: parts[1], Player2: parts[2], Winner: parts[3]}, nil

	case "STATUS":
		if len(parts) < 2 {
			return Command{Kind: KindStatus}, ErrMalformed
		}
		return Command{Kind: KindStatus, Status: strings.Join(parts[1:], ":")}, nil
	}

	return Command{Kind: KindUnknown}, nil
}

// ChallengeRequest is the push delivered to a challenged player.
func ChallengeRequest(challenger string) string {
	return "CHALLENGE_REQUEST:" + challenger
}

// MatchStart is the handoff push delivered to both matched players.
// role is "server" for the side that listens and "client" for the side
// that dials; the remaining fields describe the opponent.
func MatchStart(matchID int64, role, peerIP string, peerPort int, peerCar, peerName string) string {
	return fmt.Sprintf("MATCH_START:%d:%s:%s:%d:%s:%s", matchID, role, peerIP, peerPort, peerCar, peerName)
}

// PlayerInfo is one entry of the JSON payload answering a list query.
type PlayerInfo struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Car         string `json:"car"`
	Wins        int    `json:"wins"`
	Games       int    `json:"games"`
	LastLogin   string `json:"last_login"`
}
