package mixer

import (
	"fmt"
	"strings"
)

// State is the playback state of a Mixer.
type State int

const (
	// StateUndefined is the state of a closed Mixer.
	StateUndefined State = iota
	StatePlaying
	StateStopped
	// StateFinished means the longest source ran out; Start rewinds.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	case StateFinished:
		return "finished"
	default:
		return "undefined"
	}
}

// Preset selects the stretcher configuration derived from the sample rate.
type Preset int

const (
	// PresetDefault uses a 120 ms window and a 30 ms interval.
	PresetDefault Preset = iota
	// PresetCheaper uses a 100 ms window and a 40 ms interval.
	PresetCheaper
)

func (p Preset) String() string {
	switch p {
	case PresetDefault:
		return "default"
	case PresetCheaper:
		return "cheaper"
	default:
		return fmt.Sprintf("Preset(%d)", int(p))
	}
}

// ParsePreset returns the preset with the given name.
func ParsePreset(name string) (Preset, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return PresetDefault, nil
	case "cheaper", "cheap":
		return PresetCheaper, nil
	default:
		return 0, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
}
