package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Parser parses and validates topology documents.
type Parser struct {
	validator *validator.Validate
}

// NewParser creates a parser with the topology validation rules
// registered.
func NewParser() *Parser {
	v := validator.New()
	return &Parser{validator: v}
}

// Parse auto-detects the document format. A document whose first
// non-space character is '{' is treated as JSON; anything else is
// treated as YAML.
func (p *Parser) Parse(data string) (Topology, error) {
	if strings.HasPrefix(strings.TrimSpace(data), "{") {
		return p.ParseJSON(data)
	}
	return p.ParseYAML(data)
}

// ParseJSON parses a JSON topology document and validates it.
func (p *Parser) ParseJSON(data string) (Topology, error) {
	var topo Topology
	if err := json.Unmarshal([]byte(data), &topo); err != nil {
		return nil, fmt.Errorf("failed to parse JSON topology: %w", err)
	}
	if err := p.validate(topo); err != nil {
		return nil, err
	}
	return topo, nil
}

// ParseYAML parses a YAML topology document and validates it.
func (p *Parser) ParseYAML(data string) (Topology, error) {
	var topo Topology
	if err := yaml.Unmarshal([]byte(data), &topo); err != nil {
		return nil, fmt.Errorf("failed to parse YAML topology: %w", err)
	}
	if err := p.validate(topo); err != nil {
		return nil, err
	}
	return topo, nil
}

// validate applies the structural rules: queue names must be non-empty
// and name-safe, every spec must carry at least an empty topic list, and
// topic names must be non-empty and name-safe.
func (p *Parser) validate(topo Topology) error {
	for queue, spec := range topo {
		if strings.TrimSpace(queue) == "" {
			return fmt.Errorf("topology contains an empty queue name")
		}
		if err := validateName(queue); err != nil {
			return fmt.Errorf("queue %q: %w", queue, err)
		}
		if err := p.validator.Struct(spec); err != nil {
			return fmt.Errorf("queue %q: invalid spec: %w", queue, err)
		}
		for _, topic := range spec.Topics {
			if err := validateName(topic); err != nil {
				return fmt.Errorf("queue %q: topic %q: %w", queue, topic, err)
			}
		}
	}
	return nil
}

// validateName enforces the SNS/SQS name charset on logical names.
// The environment suffix added later also stays within this charset.
func validateName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("name is empty")
	}
	if len(name) > 80 {
		return fmt.Errorf("name exceeds 80 characters")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("name contains invalid character %q", r)
		}
	}
	return nil
}
