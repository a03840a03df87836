// racebot is a headless client that exercises the full match flow:
// it logs in (registering first if needed), either challenges an
// opponent or waits to be challenged, runs the peer sync channel for a
// while with synthetic movement, and reports the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zayn-rush/rush-backend/internal/client"
	"github.com/zayn-rush/rush-backend/internal/peer"
	"github.com/zayn-rush/rush-backend/internal/protocol"
)

func main() {
	var (
		serverAddr = flag.String("server", "127.0.0.1:8005", "matchmaking server address")
		username   = flag.String("user", "racebot", "username")
		password   = flag.String("pass", "racebot", "password")
		car        = flag.String("car", "A", "car choice")
		opponent   = flag.String("opponent", "", "username to challenge; empty waits for a challenge")
		duration   = flag.Duration("duration", 10*time.Second, "how long to race")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	conn, err := client.Login(*serverAddr, *username, *password)
	if err != nil {
		logger.Info("login failed, registering", zap.Error(err))
		if err := client.Register(*serverAddr, *username, *password, *car); err != nil {
			logger.Fatal("registration failed", zap.Error(err))
		}
		if conn, err = client.Login(*serverAddr, *username, *password); err != nil {
			logger.Fatal("login failed after registration", zap.Error(err))
		}
	}
	defer conn.Close()
	logger.Info("logged in", zap.String("username", *username))

	if *opponent != "" {
		if err := conn.Challenge(*opponent, *car); err != nil {
			logger.Fatal("challenge failed", zap.Error(err))
		}
	}

	start, err := waitForMatch(conn, *car, logger)
	if err != nil {
		logger.Fatal("no match", zap.Error(err))
	}
	logger.Info("match starting",
		zap.Int64("match_id", start.MatchID),
		zap.String("role", start.Role),
		zap.String("opponent", start.OpponentName))

	if err := race(start, *duration, logger); err != nil {
		logger.Fatal("race aborted", zap.Error(err))
	}

	// The challenging bot reports; a passive bot leaves it to the opponent.
	if *opponent != "" {
		if err := conn.ReportResult(*username, start.OpponentName, protocol.Draw); err != nil {
			logger.Fatal("result report failed", zap.Error(err))
		}
		reply, err := conn.ReadLine()
		if err != nil {
			logger.Fatal("no result acknowledgment", zap.Error(err))
		}
		logger.Info("result reported", zap.String("reply", reply))
	}
}

// waitForMatch reads server pushes until a handoff arrives, accepting
// any incoming challenge along the way.
func waitForMatch(conn *client.Conn, car string, logger *zap.Logger) (client.MatchStart, error) {
	for {
		line, err := conn.ReadLine()
		if err != nil {
			return client.MatchStart{}, err
		}
		if start, ok := client.ParseMatchStart(line); ok {
			return start, nil
		}
		switch {
		case strings.HasPrefix(line, "CHALLENGE_REQUEST:"):
			challenger := strings.TrimPrefix(line, "CHALLENGE_REQUEST:")
			logger.Info("accepting challenge", zap.String("challenger", challenger))
			if err := conn.Accept(car); err != nil {
				return client.MatchStart{}, err
			}
		case line == protocol.ReplyChallengeSent:
			logger.Info("challenge sent, waiting for response")
		case line == protocol.ReplyChallengeRejected,
			line == protocol.ReplyOpponentNotAvailable:
			return client.MatchStart{}, fmt.Errorf("matchmaking failed: %s", line)
		default:
			logger.Debug("ignoring server line", zap.String("line", line))
		}
	}
}

// race runs the peer channel with synthetic movement. The host spawns
// an obstacle every second.
func race(start client.MatchStart, duration time.Duration, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), duration+30*time.Second)
	defer cancel()

	var (
		peerConn net.Conn
		err      error
	)
	role := peer.Role(start.Role)
	if role == peer.RoleHost {
		peerConn, err = peer.Host(ctx, start.OpponentPort)
	} else {
		peerConn, err = peer.Dial(ctx, net.JoinHostPort(start.OpponentIP, strconv.Itoa(start.OpponentPort)))
	}
	if err != nil {
		return err
	}

	ch := peer.NewChannel(peerConn, role, logger)
	ch.Start()
	defer ch.Close()

	deadline := time.Now().Add(duration)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	x, y, health := 100, 400, 5
	obstacleIndex := 0
	lastSpawn := time.Now()

	for now := range ticker.C {
		if now.After(deadline) {
			break
		}
		x = 100 + int(now.UnixMilli()/100%400)
		ch.SetLocal(x, y, health)

		if role == peer.RoleHost && now.Sub(lastSpawn) >= time.Second {
			ch.QueueEvent(peer.ObstacleEvent{
				Index:   obstacleIndex,
				X:       50 + obstacleIndex*37%500,
				Y:       -70,
				Variant: obstacleIndex % 3,
			})
			obstacleIndex++
			lastSpawn = now
		}
	}

	remote := ch.Remote()
	logger.Info("race finished",
		zap.Int("opponent_x", remote.X),
		zap.Int("opponent_y", remote.Y),
		zap.Int("opponent_health", remote.Health),
		zap.Int("obstacles", len(ch.Obstacles())))
	return nil
}
