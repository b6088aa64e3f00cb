package reroute

import "errors"

// ErrorKind classifies reroute failures so callers can tell "no route" apart
// from "cancelled" and decide whether forcing another reroute is worthwhile.
type ErrorKind string

const (
	// KindInvalidResponse marks a request or response string that could not be
	// decoded into a structured query/result.
	KindInvalidResponse ErrorKind = "invalid_response"

	// KindCancelled marks an operation cancelled locally before or during the
	// provider call.
	KindCancelled ErrorKind = "cancelled"

	// KindNoProvider marks a custom reroute attempted with no routing provider
	// configured.
	KindNoProvider ErrorKind = "no_provider"

	// KindProviderError marks a provider call that completed with failure;
	// the message is provider-supplied and preserved verbatim.
	KindProviderError ErrorKind = "provider_error"

	// KindProviderEmptyResult marks a provider result that cannot be
	// identified or cached (missing identifier).
	KindProviderEmptyResult ErrorKind = "provider_empty_result"
)

// Error is the typed failure surfaced to the delegate. Never fatal.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e Error) Error() string {
	if e.Message == "" {
		return "reroute: " + string(e.Kind)
	}
	return "reroute: " + string(e.Kind) + ": " + e.Message
}

// IsKind reports whether err is a reroute Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e Error
	return errors.As(err, &e) && e.Kind == kind
}
