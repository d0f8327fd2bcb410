package x86level

import (
	"fmt"
	"strings"
)

// Mode selects what [Select] reports.
type Mode int

const (
	// ModeHighest reports only the strictest satisfied level.
	ModeHighest Mode = iota
	// ModeAll reports every satisfied level.
	ModeAll
)

func (m Mode) String() string {
	switch m {
	case ModeHighest:
		return "highest"
	case ModeAll:
		return "all"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// Select renders the satisfied levels as returned by [SupportedLevels].
// The levels are trusted to be ordered by increasing strictness.
// It returns [ErrNoLevelSupported] when levels is empty.
func Select(levels []Level, mode Mode) (string, error) {
	if len(levels) == 0 {
		return "", ErrNoLevelSupported
	}

	switch mode {
	case ModeHighest:
		return levels[len(levels)-1].String(), nil
	case ModeAll:
		names := make([]string, 0, len(levels))
		for _, l := range levels {
			names = append(names, l.String())
		}
		return strings.Join(names, " "), nil
	default:
		return "", fmt.Errorf("unknown report mode %s", mode)
	}
}
