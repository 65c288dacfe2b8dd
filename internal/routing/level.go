// Package routing assigns tasks to capability levels and escalates a task to
// the next level when it takes too long.
package routing

import (
	"fmt"
	"strings"
)

// Level is a capability tier. The zero value means "no level".
type Level int

// Capability levels, weakest first.
const (
	LevelRalph Level = iota + 1 // local model, grunt work
	LevelEddie                  // stronger local model
	LevelLou                    // frontier model
	LevelMatt                   // human in the loop
)

// Levels lists every level in escalation order.
var Levels = []Level{LevelRalph, LevelEddie, LevelLou, LevelMatt}

var levelNames = map[Level]string{
	LevelRalph: "ralph",
	LevelEddie: "eddie",
	LevelLou:   "lou",
	LevelMatt:  "matt",
}

var levelDescriptions = map[Level]string{
	LevelRalph: "Ralph (Wiggum) - Local model, does the grunt work",
	LevelEddie: "Eddie - Better local model, steps in when Ralph struggles",
	LevelLou:   "Lou - Frontier model, handles complex cases",
	LevelMatt:  "Chief Matt - Human in the loop, final authority",
}

// String returns the lowercase level name.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// Description returns a human-readable description of the level.
func (l Level) Description() string {
	if d, ok := levelDescriptions[l]; ok {
		return d
	}
	return l.String()
}

// ParseLevel converts a lowercase name into a Level. Matching ignores case
// and surrounding whitespace.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for l, n := range levelNames {
		if n == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown capability level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid capability level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
