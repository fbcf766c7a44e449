// Package version picks the best protocol version a connecting client and
// the server have in common. The server advertises an ordered list of
// semver ranges, most preferred first; the client offers its own list of
// ranges it can speak. The negotiator returns the first server range that
// intersects any client range.
package version

import (
	"fmt"

	"github.com/Masterminds/semver"
)

// DefaultServerVersions is the server's canonical, most-preferred-first
// range list.
var DefaultServerVersions = []string{"^0.4.0", "^0.3.0", "^0.2.0", "^0.1.0"}

// defaultClientVersions is substituted when a client omits its version
// offer entirely.
var defaultClientVersions = []string{"^0.1.0"}

// UnsupportedError is returned when no server range intersects any client
// range. It carries both lists so the caller can echo them verbatim in a
// BadProtocol response.
type UnsupportedError struct {
	Server []string
	Client []string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("Unsupported client protocol. Server: %v. Client: %v", e.Server, e.Client)
}

// Negotiate returns the first serverRanges entry that intersects any entry
// of clientRanges. An empty clientRanges is treated as ["^0.1.0"].
func Negotiate(serverRanges, clientRanges []string) (string, error) {
	offered := clientRanges
	if len(offered) == 0 {
		offered = defaultClientVersions
	}

	for _, srv := range serverRanges {
		for _, cli := range offered {
			if rangesIntersect(srv, cli) {
				return srv, nil
			}
		}
	}
	return "", &UnsupportedError{Server: serverRanges, Client: clientRanges}
}

// rangesIntersect reports whether two semver ranges admit at least one
// common version. Caret ranges ("^X.Y.Z") are resolved to their half-open
// interval per standard caret semantics and compared directly; any other
// range falls back to testing whether either range's own lower bound
// satisfies the other range's constraint.
func rangesIntersect(a, b string) bool {
	loA, upA, okA := caretInterval(a)
	loB, upB, okB := caretInterval(b)

	if okA && okB {
		return loA.LessThan(upB) && loB.LessThan(upA)
	}

	return genericIntersect(a, b)
}

// caretInterval resolves a "^X.Y.Z" range string to its half-open interval
// [lower, upper). Returns ok=false if rangeStr is not a caret range.
func caretInterval(rangeStr string) (lower, upper *semver.Version, ok bool) {
	if len(rangeStr) == 0 || rangeStr[0] != '^' {
		return nil, nil, false
	}

	v, err := semver.NewVersion(rangeStr[1:])
	if err != nil {
		return nil, nil, false
	}

	var up semver.Version
	switch {
	case v.Major() > 0:
		up = v.IncMajor()
	case v.Minor() > 0:
		up = v.IncMinor()
	default:
		up = v.IncPatch()
	}
	return v, &up, true
}

// genericIntersect handles non-caret ranges by testing each range's own
// lower bound against the other as a constraint.
func genericIntersect(a, b string) bool {
	ca, errA := semver.NewConstraint(a)
	cb, errB := semver.NewConstraint(b)
	if errA != nil || errB != nil {
		return a == b
	}

	if lo, _, ok := caretInterval(a); ok && cb.Check(lo) {
		return true
	}
	if lo, _, ok := caretInterval(b); ok && ca.Check(lo) {
		return true
	}
	return false
}
