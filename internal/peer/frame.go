// Package peer implements the direct state-sync channel two matched
// clients run between themselves for the duration of a race.
package peer

import (
	"fmt"
	"strconv"
	"strings"
)

// State is one side's car position and health.
type State struct {
	X      int
	Y      int
	Health int
}

// ObstacleEvent is an authoritative correction for the obstacle at
// Index: its new position and sprite variant. An index one past the
// known obstacles means a fresh spawn.
type ObstacleEvent struct {
	Index   int
	X       int
	Y       int
	Variant int
}

// Obstacle is the locally tracked view of one synced obstacle.
type Obstacle struct {
	X       int
	Y       int
	Variant int
}

// Frame is one periodic sync message: the sender's state plus at most
// one obstacle event.
type Frame struct {
	State State
	Event *ObstacleEvent
}

// noEventMarker fills the event field when the frame carries none.
const noEventMarker = "-1"

// Encode renders the frame without its trailing newline:
// "<x>,<y>,<health>,<index>:<x>:<y>:<variant>" or "<x>,<y>,<health>,-1".
func (f Frame) Encode() string {
	if f.Event == nil {
		return fmt.Sprintf("%d,%d,%d,%s", f.State.X, f.State.Y, f.State.Health, noEventMarker)
	}
	e := f.Event
	return fmt.Sprintf("%d,%d,%d,%d:%d:%d:%d", f.State.X, f.State.Y, f.State.Health, e.Index, e.X, e.Y, e.Variant)
}

// ParseFrame decodes one received line. ok is false when the three
// required state fields are missing or unparseable; such frames are
// skipped silently by the receive loop. A frame with a corrupt event
// field is still valid, minus the event.
func ParseFrame(line string) (Frame, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return Frame{}, false
	}
	x, err := strconv.Atoi(parts[0])
	if err != nil {
		return Frame{}, false
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil {
		return Frame{}, false
	}
	health, err := strconv.Atoi(parts[2])
	if err != nil {
		return Frame{}, false
	}

	frame := Frame{State: State{X: x, Y: y, Health: health}}
	if len(parts) < 4 || parts[3] == noEventMarker {
		return frame, true
	}

	evtParts := strings.Split(parts[3], ":")
	if len(evtParts) < 4 {
		return frame, true
	}
	var evt ObstacleEvent
	fields := []*int{&evt.Index, &evt.X, &evt.Y, &evt.Variant}
	for i, field := range fields {
		n, err := strconv.Atoi(evtParts[i])
		if err != nil {
			return frame, true
		}
		*field = n
	}
	frame.Event = &evt
	return frame, true
}
