package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"toolgate/internal/domain"
)

// Source identifies an agent client whose config can seed registrations.
type Source string

const (
	SourceClaude Source = "claude"
	SourceCodex  Source = "codex"
	SourceGemini Source = "gemini"
)

const (
	// IssueInvalid marks an entry that could not be parsed.
	IssueInvalid = "invalid"
	// IssueDuplicate marks an entry shadowed by another definition.
	IssueDuplicate = "duplicate"
	// IssueSkipped marks a valid entry this gateway cannot host.
	IssueSkipped = "skipped"
)

var (
	// ErrNotFound indicates the source config file does not exist.
	ErrNotFound = errors.New("import source config not found")
	// ErrUnknownSource indicates an unsupported source name.
	ErrUnknownSource = errors.New("unknown import source")
)

// Issue describes one entry that did not import cleanly.
type Issue struct {
	Name    string
	Kind    string
	Message string
}

// ImportResult holds the registrations recovered from a source config plus
// per-entry issues. Issues never abort an import.
type ImportResult struct {
	Source   Source
	Path     string
	Backends []domain.Registration
	Issues   []Issue
}

// ParseSource converts a raw CLI argument into a Source.
func ParseSource(raw string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(SourceClaude):
		return SourceClaude, nil
	case string(SourceCodex):
		return SourceCodex, nil
	case string(SourceGemini):
		return SourceGemini, nil
	default:
		return "", ErrUnknownSource
	}
}

// ResolvePath returns the default config location for the given source.
func ResolvePath(source Source) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	switch source {
	case SourceClaude:
		return filepath.Join(home, ".claude.json"), nil
	case SourceCodex:
		return filepath.Join(home, ".codex", "config.toml"), nil
	case SourceGemini:
		return filepath.Join(home, ".gemini", "settings.json"), nil
	default:
		return "", ErrUnknownSource
	}
}

// ReadSource imports registrations from the source's default config path.
func ReadSource(source Source) (ImportResult, error) {
	path, err := ResolvePath(source)
	if err != nil {
		return ImportResult{}, err
	}
	return ReadSourceFile(source, path)
}

// ReadSourceFile imports registrations from an explicit config path.
func ReadSourceFile(source Source, path string) (ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ImportResult{Source: source, Path: path}, ErrNotFound
		}
		return ImportResult{}, fmt.Errorf("read source: %w", err)
	}

	var result ImportResult
	switch source {
	case SourceClaude, SourceGemini:
		result, err = readJSONSource(source, path, data)
	case SourceCodex:
		result, err = readCodexSource(path, data)
	default:
		return ImportResult{}, ErrUnknownSource
	}
	if err != nil {
		return ImportResult{}, err
	}

	// Source configs are maps, so iteration order is random. Sort for
	// stable CLI output and store writes.
	sort.Slice(result.Backends, func(i, j int) bool {
		return result.Backends[i].Name < result.Backends[j].Name
	})
	sort.Slice(result.Issues, func(i, j int) bool {
		return result.Issues[i].Name < result.Issues[j].Name
	})
	return result, nil
}

func readJSONSource(source Source, path string, data []byte) (ImportResult, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return ImportResult{}, fmt.Errorf("parse json: %w", err)
	}
	raw, ok := payload["mcpServers"].(map[string]any)
	if !ok {
		return ImportResult{}, errors.New("mcpServers must be an object map")
	}

	result := ImportResult{
		Source:   source,
		Path:     path,
		Backends: make([]domain.Registration, 0, len(raw)),
	}
	for name, entry := range raw {
		result.collect(name, entry)
	}
	return result, nil
}

func readCodexSource(path string, data []byte) (ImportResult, error) {
	var payload map[string]any
	if err := toml.Unmarshal(data, &payload); err != nil {
		return ImportResult{}, fmt.Errorf("parse toml: %w", err)
	}

	result := ImportResult{Source: SourceCodex, Path: path}
	primary := readTomlTable(payload, "mcp_servers")
	legacy := readTomlTable(payload, "mcp", "servers")

	seen := make(map[string]struct{})
	result.Backends = make([]domain.Registration, 0, len(primary))
	for name, entry := range primary {
		if result.collect(name, entry) {
			seen[strings.TrimSpace(name)] = struct{}{}
		}
	}
	for name, entry := range legacy {
		if _, exists := seen[strings.TrimSpace(name)]; exists {
			result.Issues = append(result.Issues, Issue{
				Name:    name,
				Kind:    IssueDuplicate,
				Message: "legacy mcp.servers entry ignored because mcp_servers already defines it",
			})
			continue
		}
		result.collect(name, entry)
	}
	return result, nil
}

// collect parses one entry into the result, recording an issue when it
// cannot be imported. Returns true when a registration was added.
func (r *ImportResult) collect(name string, entry any) bool {
	table, ok := entry.(map[string]any)
	if !ok {
		r.Issues = append(r.Issues, Issue{
			Name:    name,
			Kind:    IssueInvalid,
			Message: "entry must be an object",
		})
		return false
	}
	reg, issue, ok := parseRegistration(name, table)
	if !ok {
		if issue != nil {
			r.Issues = append(r.Issues, *issue)
		}
		return false
	}
	r.Backends = append(r.Backends, reg)
	return true
}

func readTomlTable(payload map[string]any, path ...string) map[string]any {
	current := payload
	for i, key := range path {
		value, ok := current[key]
		if !ok {
			return nil
		}
		if i == len(path)-1 {
			table, ok := value.(map[string]any)
			if !ok {
				return nil
			}
			return table
		}
		next, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

func parseRegistration(name string, entry map[string]any) (domain.Registration, *Issue, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Registration{}, &Issue{
			Kind:    IssueInvalid,
			Message: "backend name is required",
		}, false
	}
	if !domain.ValidBackendName(name) {
		return domain.Registration{}, &Issue{
			Name:    name,
			Kind:    IssueInvalid,
			Message: fmt.Sprintf("backend name must match %s", domain.BackendNamePattern),
		}, false
	}

	if remote, why := remoteEntry(entry); remote {
		return domain.Registration{}, &Issue{
			Name:    name,
			Kind:    IssueSkipped,
			Message: why,
		}, false
	}

	command, ok := readRequiredString(entry, "command")
	if !ok {
		return domain.Registration{}, &Issue{
			Name:    name,
			Kind:    IssueInvalid,
			Message: "command is required",
		}, false
	}
	args, ok := readStringSlice(entry, "args")
	if !ok {
		return domain.Registration{}, &Issue{
			Name:    name,
			Kind:    IssueInvalid,
			Message: "args must be an array of strings",
		}, false
	}
	env, ok := readStringMap(entry, "env")
	if !ok {
		return domain.Registration{}, &Issue{
			Name:    name,
			Kind:    IssueInvalid,
			Message: "env must be a map of strings",
		}, false
	}
	disabled, ok := readBool(entry, "disabled")
	if !ok {
		return domain.Registration{}, &Issue{
			Name:    name,
			Kind:    IssueInvalid,
			Message: "disabled must be a boolean",
		}, false
	}

	return domain.Registration{
		Name: name,
		Config: domain.BackendConfig{
			Command:  command,
			Args:     args,
			Env:      env,
			Disabled: disabled,
		},
	}, nil, true
}

// remoteEntry reports whether the entry describes a remote server. The
// gateway only launches stdio subprocesses, so url- or sse-style entries
// are skipped rather than mangled into something that cannot start.
func remoteEntry(entry map[string]any) (bool, string) {
	for _, key := range []string{"url", "endpoint", "httpUrl", "serverUrl"} {
		if value, exists := entry[key]; exists {
			if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
				return true, "remote server entries are not supported, only stdio commands import"
			}
		}
	}
	for _, key := range []string{"transport", "type"} {
		value, exists := entry[key]
		if !exists {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "stdio":
		default:
			return true, fmt.Sprintf("transport %q is not supported, only stdio commands import", s)
		}
	}
	return false, ""
}

func readRequiredString(entry map[string]any, key string) (string, bool) {
	value, ok := entry[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func readStringSlice(entry map[string]any, key string) ([]string, bool) {
	value, ok := entry[key]
	if !ok {
		return nil, true
	}
	switch raw := value.(type) {
	case []string:
		return append([]string(nil), raw...), true
	case []any:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func readStringMap(entry map[string]any, key string) (map[string]string, bool) {
	value, ok := entry[key]
	if !ok {
		return nil, true
	}
	switch raw := value.(type) {
	case map[string]string:
		out := make(map[string]string, len(raw))
		for k, v := range raw {
			out[k] = v
		}
		return out, true
	case map[string]any:
		out := make(map[string]string, len(raw))
		for k, v := range raw {
			s, ok := v.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func readBool(entry map[string]any, key string) (bool, bool) {
	value, ok := entry[key]
	if !ok {
		return false, true
	}
	b, ok := value.(bool)
	if !ok {
		return false, false
	}
	return b, true
}
