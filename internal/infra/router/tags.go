package router

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
)

// tagVocabulary is matched as plain substrings of the lowercased
// description: action verbs first, then domain nouns.
var tagVocabulary = []string{
	"search", "create", "update", "delete", "list", "get", "send", "upload",
	"web", "file", "code", "api", "data",
}

// derivedTags maps a tag to the substrings that trigger it.
var derivedTags = []struct {
	tag      string
	triggers []string
}{
	{tag: "screenshot", triggers: []string{"screenshot"}},
	{tag: "navigation", triggers: []string{"navigate", "navigation"}},
	{tag: "read", triggers: []string{"read"}},
	{tag: "write", triggers: []string{"write"}},
	{tag: "documentation", triggers: []string{"documentation", "docs"}},
}

// ExtractTags derives catalog tags from a tool description. The scan is
// deterministic: fixed vocabulary, lowercased substring matching, sorted
// deduplicated output.
func ExtractTags(description string) []string {
	if description == "" {
		return nil
	}

	lower := strings.ToLower(description)
	set := make(map[string]struct{})
	for _, keyword := range tagVocabulary {
		if strings.Contains(lower, keyword) {
			set[keyword] = struct{}{}
		}
	}
	for _, derived := range derivedTags {
		for _, trigger := range derived.triggers {
			if strings.Contains(lower, trigger) {
				set[derived.tag] = struct{}{}
				break
			}
		}
	}

	if len(set) == 0 {
		return nil
	}
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// EstimateTokens approximates the context cost of advertising one tool: 1.3
// tokens per description word, a quarter token per parameter-schema byte,
// plus a fixed envelope overhead.
func EstimateTokens(description string, parameters json.RawMessage) int {
	words := len(strings.Fields(description))
	schemaLen := len(parameters)
	if schemaLen == 0 {
		schemaLen = len("{}")
	}
	return int(math.Round(1.3*float64(words) + float64(schemaLen)/4 + 50))
}
