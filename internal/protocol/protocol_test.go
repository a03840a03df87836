package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Command
		wantErr bool
	}{
		{
			name: "list query",
			line: "G",
			want: Command{Kind: KindList},
		},
		{
			name: "list query lowercase",
			line: "g",
			want: Command{Kind: KindList},
		},
		{
			name: "login",
			line: "LOGIN:alice:secret1",
			want: Command{Kind: KindLogin, Username: "alice", Password: "secret1"},
		},
		{
			name:    "login missing password",
			line:    "LOGIN:alice",
			wantErr: true,
		},
		{
			name: "register",
			line: "REGISTER:alice:secret1:Red",
			want: Command{Kind: KindRegister, Username: "alice", Password: "secret1", Car: "Red"},
		},
		{
			name: "register empty car falls back to default",
			line: "REGISTER:alice:secret1:",
			want: Command{Kind: KindRegister, Username: "alice", Password: "secret1", Car: DefaultCar},
		},
		{
			name:    "register missing car field",
			line:    "REGISTER:alice:secret1",
			wantErr: true,
		},
		{
			name: "challenge with car",
			line: "CHALLENGE:alice:bob:Red",
			want: Command{Kind: KindChallenge, Challenger: "alice", Challenged: "bob", Car: "Red"},
		},
		{
			name: "challenge without car defaults",
			line: "CHALLENGE:alice:bob",
			want: Command{Kind: KindChallenge, Challenger: "alice", Challenged: "bob", Car: DefaultCar},
		},
		{
			name:    "challenge missing target",
			line:    "CHALLENGE:alice",
			wantErr: true,
		},
		{
			name: "accept with car override",
			line: "CHALLENGE_RESPONSE:bob:ACCEPT:Blue",
			want: Command{Kind: KindRespond, Responder: "bob", Accept: true, Car: "Blue"},
		},
		{
			name: "reject lowercase decision",
			line: "CHALLENGE_RESPONSE:bob:reject",
			want: Command{Kind: KindRespond, Responder: "bob", Accept: false},
		},
		{
			name:    "response with bogus decision",
			line:    "CHALLENGE_RESPONSE:bob:MAYBE",
			wantErr: true,
		},
		{
			name: "result",
			line: "RESULT:alice:bob:alice",
			want: Command{Kind: KindResult, Player1: "alice", Player2: "bob", Winner: "alice"},
		},
		{
			name: "result draw",
			line: "RESULT:alice:bob:DRAW",
			want: Command{Kind: KindResult, Player1: "alice", Player2: "bob", Winner: Draw},
		},
		{
			name:    "result missing winner",
			line:    "RESULT:alice:bob",
			wantErr: true,
		},
		{
			name: "status keeps colons in text",
			line: "STATUS:in menu: garage",
			want: Command{Kind: KindStatus, Status: "in menu: garage"},
		},
		{
			name: "unknown command",
			line: "TELEPORT:alice",
			want: Command{Kind: KindUnknown},
		},
		{
			name: "empty line is unknown",
			line: "",
			want: Command{Kind: KindUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMatchStart(t *testing.T) {
	line := MatchStart(7, "server", "10.0.0.5", 12345, "Red", "alice")
	require.Equal(t, "MATCH_START:7:server:10.0.0.5:12345:Red:alice", line)
}

func TestChallengeRequest(t *testing.T) {
	require.Equal(t, "CHALLENGE_REQUEST:alice", ChallengeRequest("alice"))
}
