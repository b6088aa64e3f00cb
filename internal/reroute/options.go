package reroute

// DefaultAvoidManeuverSeconds is the default maneuver-avoidance radius applied
// to reroute queries that do not carry one.
const DefaultAvoidManeuverSeconds = 8.0

// Options configure a coordinator at construction time and define what
// ResetToDefaults restores.
type Options struct {
	AvoidManeuverSeconds float64
}

func (o Options) withDefaults() Options {
	out := o
	if out.AvoidManeuverSeconds <= 0 {
		out.AvoidManeuverSeconds = DefaultAvoidManeuverSeconds
	}
	return out
}
