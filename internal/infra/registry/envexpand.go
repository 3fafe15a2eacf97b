package registry

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envExpander substitutes $VAR and ${VAR} references in YAML scalars while
// keeping track of variables that were not set.
type envExpander struct {
	missing map[string]struct{}
}

// expandEnv expands environment references in a raw YAML document. It
// returns the expanded document along with the sorted names of referenced
// variables that had no value. Unset references expand to the empty string
// so a missing secret surfaces as a validation error, not a parse error.
func expandEnv(raw []byte) ([]byte, []string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, nil, fmt.Errorf("parse config: %w", err)
	}

	ex := &envExpander{missing: make(map[string]struct{})}
	ex.walk(&root)

	expanded, err := yaml.Marshal(&root)
	if err != nil {
		return nil, nil, fmt.Errorf("encode expanded config: %w", err)
	}
	return expanded, ex.sortedMissing(), nil
}

func (ex *envExpander) walk(node *yaml.Node) {
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			ex.walk(child)
		}
	case yaml.MappingNode:
		// Keys stay literal, only values are expanded.
		for i := 0; i+1 < len(node.Content); i += 2 {
			ex.walk(node.Content[i+1])
		}
	case yaml.AliasNode:
		if node.Alias != nil {
			ex.walk(node.Alias)
		}
	case yaml.ScalarNode:
		ex.rewriteScalar(node)
	}
}

func (ex *envExpander) rewriteScalar(node *yaml.Node) {
	if node.Tag != "" && node.Tag != "!!str" {
		return
	}
	if !strings.Contains(node.Value, "$") {
		return
	}

	expanded := os.Expand(node.Value, ex.lookup)
	if expanded == node.Value {
		return
	}

	if node.Style != 0 {
		// Quoted scalars keep their string-ness regardless of content.
		node.Tag = "!!str"
		node.Value = expanded
		return
	}
	node.Tag, node.Value = retagScalar(expanded)
}

func (ex *envExpander) lookup(key string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	ex.missing[key] = struct{}{}
	return ""
}

func (ex *envExpander) sortedMissing() []string {
	if len(ex.missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(ex.missing))
	for name := range ex.missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// retagScalar re-probes an expanded plain scalar so "true", "8080" and
// friends land with their natural YAML type instead of sticking as strings.
func retagScalar(value string) (string, string) {
	if strings.TrimSpace(value) == "" {
		return "!!str", value
	}

	var probed any
	if err := yaml.Unmarshal([]byte(value), &probed); err != nil {
		return "!!str", value
	}

	switch v := probed.(type) {
	case nil:
		return "!!null", "null"
	case bool:
		return "!!bool", strconv.FormatBool(v)
	case int:
		return "!!int", strconv.Itoa(v)
	case int64:
		return "!!int", strconv.FormatInt(v, 10)
	case uint64:
		return "!!int", strconv.FormatUint(v, 10)
	case float64:
		return "!!float", strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return "!!str", value
	}
}
