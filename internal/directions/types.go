package directions

import (
	"fmt"
	"sort"
	"strings"
)

// Route query/result models are provider-agnostic.
//
// NOTE: These are domain models only. Provider-specific payloads should be carried
// as opaque serialized strings at the adapter boundary, not mixed into this core model.

// Coordinate is a WGS84 position in lon,lat order (the order used on the wire).
type Coordinate struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// RouteQuery is the structured form of a reroute request.
//
// Immutable once constructed. Two queries are equivalent iff Key() matches;
// the key is derived from all routing-affecting fields. Transient fields
// (credentials, request timestamp) never participate in the key.
type RouteQuery struct {
	// Profile selects the routing profile (e.g. "driving-traffic", "walking").
	Profile string `json:"profile"`

	// Coordinates holds origin, optional intermediate waypoints, and destination.
	// Always at least two entries.
	Coordinates []Coordinate `json:"coordinates"`

	Alternatives bool   `json:"alternatives,omitempty"`
	Language     string `json:"language,omitempty"`
	Geometries   string `json:"geometries,omitempty"`
	Overview     string `json:"overview,omitempty"`

	// Annotations and Exclude are kept sorted so the equality key is stable.
	Annotations []string `json:"annotations,omitempty"`
	Exclude     []string `json:"exclude,omitempty"`

	// AvoidManeuverSeconds asks the router to avoid maneuvers within this many
	// seconds of travel from the origin.
	AvoidManeuverSeconds float64 `json:"avoid_maneuver_seconds,omitempty"`

	// Extras preserves routing-affecting request parameters this codec does not
	// model explicitly. They participate in the equality key.
	Extras map[string]string `json:"extras,omitempty"`
}

// Credentials is the authentication context extracted from a request.
// Carried alongside a query but never part of its equality key.
type Credentials struct {
	AccessToken string `json:"access_token"`
}

// Key returns the opaque equality key used for reroute deduplication.
// It covers every routing-affecting field and nothing transient.
func (q RouteQuery) Key() string {
	var b strings.Builder
	b.WriteString(q.Profile)
	b.WriteByte('|')
	for i, c := range q.Coordinates {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%.6f,%.6f", c.Longitude, c.Latitude)
	}
	b.WriteByte('|')
	fmt.Fprintf(&b, "alt=%t&geom=%s&lang=%s&ovr=%s&avoid=%.3f",
		q.Alternatives, q.Geometries, q.Language, q.Overview, q.AvoidManeuverSeconds)

	if len(q.Annotations) > 0 {
		b.WriteString("&ann=")
		b.WriteString(strings.Join(sortedCopy(q.Annotations), ","))
	}
	if len(q.Exclude) > 0 {
		b.WriteString("&exc=")
		b.WriteString(strings.Join(sortedCopy(q.Exclude), ","))
	}
	for _, k := range sortedKeys(q.Extras) {
		fmt.Fprintf(&b, "&%s=%s", k, q.Extras[k])
	}
	return b.String()
}

// Equivalent reports whether two queries share an equality key.
func (q RouteQuery) Equivalent(other RouteQuery) bool {
	return q.Key() == other.Key()
}

// Origin and Destination are convenience accessors; valid only for decoded queries
// (which always carry at least two coordinates).
func (q RouteQuery) Origin() Coordinate      { return q.Coordinates[0] }
func (q RouteQuery) Destination() Coordinate { return q.Coordinates[len(q.Coordinates)-1] }

// RouteResult is a computed route set, tagged with the query that produced it.
// Immutable.
type RouteResult struct {
	// ID identifies the computation at the provider (response uuid).
	// An empty ID means the result cannot be cached or referenced later.
	ID string `json:"id"`

	Routes    []Route            `json:"routes"`
	Waypoints []ResponseWaypoint `json:"waypoints,omitempty"`

	// Query is the decoded query this result answers.
	Query RouteQuery `json:"query"`
}

// Route is a single route alternative.
type Route struct {
	DistanceMeters  float64    `json:"distance"`
	DurationSeconds float64    `json:"duration"`
	Geometry        string     `json:"geometry,omitempty"`
	Legs            []RouteLeg `json:"legs,omitempty"`
}

// RouteLeg is the portion of a route between two waypoints.
type RouteLeg struct {
	DistanceMeters  float64 `json:"distance"`
	DurationSeconds float64 `json:"duration"`
	Summary         string  `json:"summary,omitempty"`
}

// ResponseWaypoint is a snapped input coordinate as reported by the router.
type ResponseWaypoint struct {
	Name     string     `json:"name,omitempty"`
	Location Coordinate `json:"location"`
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
