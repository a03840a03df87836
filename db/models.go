package db

import "time"

const (
	ResultPending = "Pending"
	ResultDraw    = "Draw"
)

type Account struct {
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"` // Hashed password
	LastLogin time.Time `json:"last_login" db:"last_login"`
	Car       string    `json:"car" db:"car"`
	Wins      int       `json:"wins" db:"wins"`
	Games     int       `json:"games" db:"games"`
}

type MatchRecord struct {
	ID      int64  `json:"id" db:"id"`
	Player1 string `json:"player1" db:"player1"`
	Player2 string `json:"player2" db:"player2"`
	Result  string `json:"result" db:"result"`
}

// Stats is the subset of an account handed out to snapshots and match setup.
// LastLogin is pre-formatted because that's what goes over the wire.
type Stats struct {
	Car       string `json:"car"`
	Wins      int    `json:"wins"`
	Games     int    `json:"games"`
	LastLogin string `json:"last_login"`
}
