// Package stage defines the observation stages an event passes through and
// the naming convention used to bind handlers to an event and stage.
package stage

import (
	"fmt"
	"strings"
)

// Stage is a phase in the processing of a single published event.
type Stage int

const (
	// Preview handlers see the event before any state change.
	Preview Stage = iota

	// Normal handlers apply the event and may commit it.
	Normal

	// Committed handlers run only when a normal handler committed the event.
	Committed
)

// All lists the stages in execution order.
var All = []Stage{Preview, Normal, Committed}

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case Preview:
		return "preview"
	case Normal:
		return "normal"
	case Committed:
		return "committed"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	return s >= Preview && s <= Committed
}

// Suffix returns the member-name suffix for the stage, e.g. "_preview".
func (s Stage) Suffix() string {
	return "_" + s.String()
}

// Parse converts a stage name to a Stage. The empty string is Normal.
func Parse(name string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "normal":
		return Normal, nil
	case "preview":
		return Preview, nil
	case "committed":
		return Committed, nil
	default:
		return Normal, fmt.Errorf("unknown stage %q", name)
	}
}

// suffixes is ordered longest first.
var suffixes = []Stage{Committed, Preview, Normal}

// Split matches a member name against prefix + eventName + stageSuffix.
// The longest recognised suffix is stripped and everything between the
// prefix and that suffix is the event name, so event names may contain
// underscores. A name without a stage suffix binds to Normal.
func Split(name, prefix string) (eventName string, st Stage, ok bool) {
	if !strings.HasPrefix(name, prefix) {
		return "", Normal, false
	}
	rest := name[len(prefix):]
	if rest == "" {
		return "", Normal, false
	}
	for _, s := range suffixes {
		suffix := s.Suffix()
		if len(rest) > len(suffix) && strings.HasSuffix(rest, suffix) {
			return rest[:len(rest)-len(suffix)], s, true
		}
	}
	return rest, Normal, true
}
