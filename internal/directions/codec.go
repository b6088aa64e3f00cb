package directions

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Codec for the serialized reroute request/response exchanged with the
// navigation engine and routing providers.
//
// Requests travel as directions-API URLs:
//
//	/directions/v5/<profile>/<lon,lat;lon,lat...>?access_token=...&alternatives=true&...
//
// Responses travel as directions-API JSON documents.
//
// Both operations are pure and side-effect-free. Failures are reported as
// errors wrapping ErrDecode, never as panics.

// ErrDecode marks a request or response string that could not be decoded.
var ErrDecode = errors.New("directions: decode failed")

const requestPathMarker = "/directions/v5/"

// Request parameters that never affect routing and are excluded from the
// decoded query (and therefore from the equality key).
var transientParams = map[string]struct{}{
	"access_token": {},
	"timestamp":    {},
}

// DecodeRequest parses a serialized reroute request into a structured query
// plus its authentication context.
func DecodeRequest(raw string) (RouteQuery, Credentials, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return RouteQuery{}, Credentials{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	idx := strings.Index(u.Path, requestPathMarker)
	if idx < 0 {
		return RouteQuery{}, Credentials{}, fmt.Errorf("%w: not a directions request path %q", ErrDecode, u.Path)
	}
	rest := u.Path[idx+len(requestPathMarker):]

	// Last path segment is the coordinate list; everything before it is the profile.
	slash := strings.LastIndex(rest, "/")
	if slash <= 0 || slash == len(rest)-1 {
		return RouteQuery{}, Credentials{}, fmt.Errorf("%w: missing profile or coordinates in %q", ErrDecode, rest)
	}
	profile := rest[:slash]
	coords, err := parseCoordinates(rest[slash+1:])
	if err != nil {
		return RouteQuery{}, Credentials{}, err
	}

	q := RouteQuery{Profile: profile, Coordinates: coords}
	creds := Credentials{}

	values := u.Query()
	for name := range values {
		v := values.Get(name)
		switch name {
		case "access_token":
			creds.AccessToken = v
		case "alternatives":
			q.Alternatives = v == "true"
		case "language":
			q.Language = v
		case "geometries":
			q.Geometries = v
		case "overview":
			q.Overview = v
		case "annotations":
			q.Annotations = splitCSV(v)
		case "exclude":
			q.Exclude = splitCSV(v)
		case "avoid_maneuver_seconds":
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return RouteQuery{}, Credentials{}, fmt.Errorf("%w: avoid_maneuver_seconds %q", ErrDecode, v)
			}
			q.AvoidManeuverSeconds = f
		default:
			if _, transient := transientParams[name]; transient {
				continue
			}
			if q.Extras == nil {
				q.Extras = map[string]string{}
			}
			q.Extras[name] = v
		}
	}

	return q, creds, nil
}

// EncodeRequest rebuilds a canonical serialized request for a query.
// baseURL may be empty, producing a server-relative URL.
func EncodeRequest(baseURL string, q RouteQuery, creds Credentials) (string, error) {
	if q.Profile == "" {
		return "", fmt.Errorf("%w: profile required", ErrDecode)
	}
	if len(q.Coordinates) < 2 {
		return "", fmt.Errorf("%w: at least two coordinates required", ErrDecode)
	}

	var path strings.Builder
	path.WriteString(strings.TrimSuffix(baseURL, "/"))
	path.WriteString(requestPathMarker)
	path.WriteString(q.Profile)
	path.WriteByte('/')
	for i, c := range q.Coordinates {
		if i > 0 {
			path.WriteByte(';')
		}
		fmt.Fprintf(&path, "%.6f,%.6f", c.Longitude, c.Latitude)
	}

	values := url.Values{}
	if creds.AccessToken != "" {
		values.Set("access_token", creds.AccessToken)
	}
	if q.Alternatives {
		values.Set("alternatives", "true")
	}
	if q.Language != "" {
		values.Set("language", q.Language)
	}
	if q.Geometries != "" {
		values.Set("geometries", q.Geometries)
	}
	if q.Overview != "" {
		values.Set("overview", q.Overview)
	}
	if len(q.Annotations) > 0 {
		values.Set("annotations", strings.Join(sortedCopy(q.Annotations), ","))
	}
	if len(q.Exclude) > 0 {
		values.Set("exclude", strings.Join(sortedCopy(q.Exclude), ","))
	}
	if q.AvoidManeuverSeconds > 0 {
		values.Set("avoid_maneuver_seconds", strconv.FormatFloat(q.AvoidManeuverSeconds, 'f', -1, 64))
	}
	for k, v := range q.Extras {
		values.Set(k, v)
	}

	out := path.String()
	if enc := values.Encode(); enc != "" {
		out += "?" + enc
	}
	return out, nil
}

// Wire shapes for response decoding.

type responseDoc struct {
	Code      string         `json:"code"`
	Message   string         `json:"message,omitempty"`
	UUID      string         `json:"uuid,omitempty"`
	Routes    []routeDoc     `json:"routes"`
	Waypoints []waypointDoc  `json:"waypoints,omitempty"`
}

type routeDoc struct {
	Distance float64       `json:"distance"`
	Duration float64       `json:"duration"`
	Geometry string        `json:"geometry,omitempty"`
	Legs     []routeLegDoc `json:"legs,omitempty"`
}

type routeLegDoc struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Summary  string  `json:"summary,omitempty"`
}

type waypointDoc struct {
	Name     string     `json:"name,omitempty"`
	Location [2]float64 `json:"location"`
}

// DecodeResponse parses a serialized route response produced for the given
// query/credentials context. A response with a non-Ok code or no routes cannot
// be associated with the query and fails. A missing uuid is NOT a decode
// failure; callers decide whether an unidentifiable result is acceptable.
func DecodeResponse(raw string, q RouteQuery, creds Credentials) (RouteResult, error) {
	var doc responseDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return RouteResult{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if doc.Code != "Ok" {
		if doc.Message != "" {
			return RouteResult{}, fmt.Errorf("%w: response code %q: %s", ErrDecode, doc.Code, doc.Message)
		}
		return RouteResult{}, fmt.Errorf("%w: response code %q", ErrDecode, doc.Code)
	}
	if len(doc.Routes) == 0 {
		return RouteResult{}, fmt.Errorf("%w: response has no routes", ErrDecode)
	}

	res := RouteResult{ID: doc.UUID, Query: q}
	for _, r := range doc.Routes {
		route := Route{
			DistanceMeters:  r.Distance,
			DurationSeconds: r.Duration,
			Geometry:        r.Geometry,
		}
		for _, l := range r.Legs {
			route.Legs = append(route.Legs, RouteLeg{
				DistanceMeters:  l.Distance,
				DurationSeconds: l.Duration,
				Summary:         l.Summary,
			})
		}
		res.Routes = append(res.Routes, route)
	}
	for _, w := range doc.Waypoints {
		res.Waypoints = append(res.Waypoints, ResponseWaypoint{
			Name:     w.Name,
			Location: Coordinate{Longitude: w.Location[0], Latitude: w.Location[1]},
		})
	}
	return res, nil
}

// EncodeResponse serializes a result back into the directions response document.
// Used to replay cached results to engine callbacks that expect the wire form.
func EncodeResponse(res RouteResult) (string, error) {
	doc := responseDoc{Code: "Ok", UUID: res.ID}
	for _, r := range res.Routes {
		rd := routeDoc{Distance: r.DistanceMeters, Duration: r.DurationSeconds, Geometry: r.Geometry}
		for _, l := range r.Legs {
			rd.Legs = append(rd.Legs, routeLegDoc{Distance: l.DistanceMeters, Duration: l.DurationSeconds, Summary: l.Summary})
		}
		doc.Routes = append(doc.Routes, rd)
	}
	for _, w := range res.Waypoints {
		doc.Waypoints = append(doc.Waypoints, waypointDoc{
			Name:     w.Name,
			Location: [2]float64{w.Location.Longitude, w.Location.Latitude},
		})
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(b), nil
}

func parseCoordinates(s string) ([]Coordinate, error) {
	parts := strings.Split(s, ";")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: need at least origin and destination, got %q", ErrDecode, s)
	}
	out := make([]Coordinate, 0, len(parts))
	for _, p := range parts {
		lonlat := strings.Split(p, ",")
		if len(lonlat) != 2 {
			return nil, fmt.Errorf("%w: bad coordinate %q", ErrDecode, p)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonlat[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad longitude %q", ErrDecode, lonlat[0])
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(lonlat[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad latitude %q", ErrDecode, lonlat[1])
		}
		out = append(out, Coordinate{Longitude: lon, Latitude: lat})
	}
	return out, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
