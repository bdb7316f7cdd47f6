// Package envtag resolves deployment environment names and derives the
// physical resource names sent to the AWS APIs. Resolution is a pure
// function over a closed set of environments; a name that cannot be
// recognized maps to Unknown rather than failing.
package envtag

import "strings"

// Tag identifies a deployment environment.
type Tag int

const (
	// Unknown is the zero value, used when no environment was supplied
	// or the supplied name is not recognized. Physical names are left
	// unsuffixed for Unknown.
	Unknown Tag = iota

	// Local is a developer machine or LocalStack-style environment.
	Local

	// Dev is the shared development environment.
	Dev

	// QA is the quality-assurance environment.
	QA

	// Test is the automated-test environment.
	Test

	// Preview is the pre-production preview environment.
	Preview

	// Prod is the production environment.
	Prod
)

// Parse maps a raw environment name to a Tag. Matching is
// case-insensitive and accepts the short aliases used in cluster
// annotations ("d", "qa", "production", ...). An empty or unrecognized
// value yields Unknown. Parse is total: it never fails.
func Parse(raw string) Tag {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "L", "LOCAL":
		return Local
	case "D", "DEV", "DEVELOPMENT":
		return Dev
	case "Q", "QA", "QE":
		return QA
	case "T", "TEST", "TESTING":
		return Test
	case "V", "PREVIEW", "PRE":
		return Preview
	case "P", "PROD", "PRODUCTION":
		return Prod
	default:
		return Unknown
	}
}

// String returns the canonical environment name.
func (t Tag) String() string {
	switch t {
	case Local:
		return "local"
	case Dev:
		return "dev"
	case QA:
		return "qa"
	case Test:
		return "test"
	case Preview:
		return "preview"
	case Prod:
		return "prod"
	default:
		return "unknown"
	}
}

// Suffix returns the short suffix appended to physical resource names in
// this environment. Topics and queues share one suffix per environment.
// The suffix for Unknown is never applied to a name; see PhysicalName.
func (t Tag) Suffix() string {
	return t.String()
}

// IsLocal reports whether the environment is a local one.
func (t Tag) IsLocal() bool {
	return t == Local
}

// IsUnknown reports whether the environment could not be determined.
func (t Tag) IsUnknown() bool {
	return t == Unknown
}

// PhysicalName derives the resource name actually sent to the cloud API
// from a logical name as written in configuration. Names are passed
// through untouched for Unknown and suffixed with "-<suffix>" otherwise.
// Pure, no I/O.
func PhysicalName(logical string, tag Tag) string {
	if tag.IsUnknown() {
		return logical
	}
	return logical + "-" + tag.Suffix()
}
