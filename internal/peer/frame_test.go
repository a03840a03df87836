package peer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameEncode(t *testing.T) {
	frame := Frame{State: State{X: 120, Y: 430, Health: 4}}
	require.Equal(t, "120,430,4,-1", frame.Encode())

	frame.Event = &ObstacleEvent{Index: 3, X: 210, Y: -70, Variant: 1}
	require.Equal(t, "120,430,4,3:210:-70:1", frame.Encode())
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   Frame
		wantOK bool
	}{
		{
			name:   "state only",
			line:   "120,430,4,-1",
			want:   Frame{State: State{X: 120, Y: 430, Health: 4}},
			wantOK: true,
		},
		{
			name:   "state without event field",
			line:   "120,430,4",
			want:   Frame{State: State{X: 120, Y: 430, Health: 4}},
			wantOK: true,
		},
		{
			name: "state with event",
			line: "120,430,4,3:210:-70:1",
			want: Frame{
				State: State{X: 120, Y: 430, Health: 4},
				Event: &ObstacleEvent{Index: 3, X: 210, Y: -70, Variant: 1},
			},
			wantOK: true,
		},
		{
			name:   "too few fields",
			line:   "120,430",
			wantOK: false,
		},
		{
			name:   "non-numeric health",
			line:   "120,430,full,-1",
			wantOK: false,
		},
		{
			name:   "empty line",
			line:   "",
			wantOK: false,
		},
		{
			name:   "corrupt event keeps state",
			line:   "120,430,4,3:210:oops:1",
			want:   Frame{State: State{X: 120, Y: 430, Health: 4}},
			wantOK: true,
		},
		{
			name:   "short event keeps state",
			line:   "120,430,4,3:210",
			want:   Frame{State: State{X: 120, Y: 430, Health: 4}},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFrame(tt.line)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFrameRoundTripWithEvent(t *testing.T) {
	original := Frame{
		State: State{X: 5, Y: -12, Health: 1},
		Event: &ObstacleEvent{Index: 0, X: 33, Y: 44, Variant: 2},
	}
	parsed, ok := ParseFrame(original.Encode())
	require.True(t, ok)
	require.Equal(t, original, parsed)
}
