package config

import (
	"fmt"
	"os"
)

// Source describes where the topology document comes from when it is
// supplied directly, either inline on the command line or as a file on
// disk. At most one field should be set; they are checked in the order
// JSONData, YAMLData, JSONFile, YAMLFile, mirroring the precedence of
// the CLI flags.
type Source struct {
	JSONData string
	YAMLData string
	JSONFile string
	YAMLFile string
}

// IsZero reports whether no direct source was supplied, in which case
// the caller falls back to the cluster ConfigMap source.
func (s Source) IsZero() bool {
	return s.JSONData == "" && s.YAMLData == "" && s.JSONFile == "" && s.YAMLFile == ""
}

// Resolve loads and parses the topology from the first populated source
// field. The boolean result is false when the source is zero, so the
// caller can distinguish "nothing supplied" from a parse failure.
func (s Source) Resolve(p *Parser) (Topology, bool, error) {
	switch {
	case s.JSONData != "":
		topo, err := p.ParseJSON(s.JSONData)
		return topo, true, err

	case s.YAMLData != "":
		topo, err := p.ParseYAML(s.YAMLData)
		return topo, true, err

	case s.JSONFile != "":
		data, err := os.ReadFile(s.JSONFile)
		if err != nil {
			return nil, true, fmt.Errorf("failed to read %s: %w", s.JSONFile, err)
		}
		topo, err := p.ParseJSON(string(data))
		return topo, true, err

	case s.YAMLFile != "":
		data, err := os.ReadFile(s.YAMLFile)
		if err != nil {
			return nil, true, fmt.Errorf("failed to read %s: %w", s.YAMLFile, err)
		}
		topo, err := p.ParseYAML(string(data))
		return topo, true, err
	}

	return nil, false, nil
}
