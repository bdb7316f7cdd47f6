package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseJSON(t *testing.T) {
	p := NewParser()

	topo, err := p.ParseJSON(`{"billing": {"topics": ["invoice-created", "invoice-paid"]}}`)
	if err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}

	spec, ok := topo["billing"]
	if !ok {
		t.Fatal("expected billing queue in topology")
	}
	if len(spec.Topics) != 2 || spec.Topics[0] != "invoice-created" || spec.Topics[1] != "invoice-paid" {
		t.Errorf("unexpected topics: %v", spec.Topics)
	}
}

func TestParseYAML(t *testing.T) {
	p := NewParser()

	topo, err := p.ParseYAML("billing:\n  topics:\n    - invoice-created\n    - invoice-paid\n")
	if err != nil {
		t.Fatalf("ParseYAML failed: %v", err)
	}
	if len(topo["billing"].Topics) != 2 {
		t.Errorf("unexpected topics: %v", topo["billing"].Topics)
	}
}

func TestParseAutoDetect(t *testing.T) {
	p := NewParser()

	// Leading '{' means JSON.
	if _, err := p.Parse(`  {"q": {"topics": ["a"]}}`); err != nil {
		t.Errorf("Parse did not detect JSON: %v", err)
	}

	// Anything else is treated as YAML.
	if _, err := p.Parse("q:\n  topics: [a]\n"); err != nil {
		t.Errorf("Parse did not detect YAML: %v", err)
	}
}

func TestParseSentinelKey(t *testing.T) {
	p := NewParser()

	topo, err := p.ParseJSON(`{"unsubscribed": {"topics": ["a", "b"]}}`)
	if err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	if !IsSentinel("unsubscribed") {
		t.Error("IsSentinel(unsubscribed) = false")
	}
	// The sentinel is case-sensitive.
	if IsSentinel("Unsubscribed") || IsSentinel("UNSUBSCRIBED") {
		t.Error("sentinel matching must be case-sensitive")
	}
	if len(topo[UnsubscribedKey].Topics) != 2 {
		t.Errorf("unexpected sentinel topics: %v", topo[UnsubscribedKey].Topics)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	p := NewParser()

	cases := []struct {
		name string
		json string
	}{
		{"invalid json", `{"billing": {`},
		{"empty topic name", `{"billing": {"topics": [""]}}`},
		{"bad topic charset", `{"billing": {"topics": ["invoice created"]}}`},
		{"bad queue charset", `{"billing queue": {"topics": ["a"]}}`},
	}

	for _, tc := range cases {
		if _, err := p.ParseJSON(tc.json); err == nil {
			t.Errorf("%s: expected error, got none", tc.name)
		}
	}
}

func TestParseAllowsEmptyTopicList(t *testing.T) {
	p := NewParser()

	// A queue with no subscriptions is still provisioned.
	topo, err := p.ParseJSON(`{"dead-letter": {"topics": []}}`)
	if err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	if len(topo["dead-letter"].Topics) != 0 {
		t.Errorf("unexpected topics: %v", topo["dead-letter"].Topics)
	}
}

func TestTopicCount(t *testing.T) {
	topo := Topology{
		"a":             {Topics: []string{"x", "y"}},
		"unsubscribed":  {Topics: []string{"z"}},
		"no-topics-yet": {},
	}
	if got := topo.TopicCount(); got != 3 {
		t.Errorf("TopicCount() = %d, want 3", got)
	}
}

func TestSourceResolve(t *testing.T) {
	p := NewParser()
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "topo.json")
	if err := os.WriteFile(jsonPath, []byte(`{"q": {"topics": ["a"]}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	yamlPath := filepath.Join(dir, "topo.yaml")
	if err := os.WriteFile(yamlPath, []byte("q:\n  topics: [b]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		src       Source
		wantTopic string
	}{
		{"inline json", Source{JSONData: `{"q": {"topics": ["a"]}}`}, "a"},
		{"inline yaml", Source{YAMLData: "q:\n  topics: [b]\n"}, "b"},
		{"json file", Source{JSONFile: jsonPath}, "a"},
		{"yaml file", Source{YAMLFile: yamlPath}, "b"},
	}

	for _, tt := range tests {
		topo, ok, err := tt.src.Resolve(p)
		if err != nil || !ok {
			t.Errorf("%s: Resolve returned ok=%v err=%v", tt.name, ok, err)
			continue
		}
		if topo["q"].Topics[0] != tt.wantTopic {
			t.Errorf("%s: got topics %v", tt.name, topo["q"].Topics)
		}
	}
}

func TestSourceResolveZero(t *testing.T) {
	p := NewParser()

	var src Source
	if !src.IsZero() {
		t.Error("zero Source reported as populated")
	}
	topo, ok, err := src.Resolve(p)
	if ok || err != nil || topo != nil {
		t.Errorf("zero source Resolve = (%v, %v, %v), want (nil, false, nil)", topo, ok, err)
	}
}

func TestSourceResolveMissingFile(t *testing.T) {
	p := NewParser()

	_, ok, err := Source{JSONFile: "/nonexistent/topo.json"}.Resolve(p)
	if !ok || err == nil {
		t.Errorf("missing file Resolve = (ok=%v, err=%v), want ok=true with error", ok, err)
	}
}
