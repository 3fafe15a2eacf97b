package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeImportFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func issueKinds(issues []Issue) map[string]string {
	out := make(map[string]string, len(issues))
	for _, issue := range issues {
		out[issue.Name] = issue.Kind
	}
	return out
}

func TestParseSource(t *testing.T) {
	cases := []struct {
		raw    string
		expect Source
	}{
		{"claude", SourceClaude},
		{"Claude", SourceClaude},
		{" codex ", SourceCodex},
		{"GEMINI", SourceGemini},
	}
	for _, tc := range cases {
		source, err := ParseSource(tc.raw)
		require.NoError(t, err)
		require.Equal(t, tc.expect, source)
	}

	_, err := ParseSource("cursor")
	require.ErrorIs(t, err, ErrUnknownSource)
}

func TestResolvePathPerSource(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := ResolvePath(SourceClaude)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".claude.json"), path)

	path, err = ResolvePath(SourceCodex)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".codex", "config.toml"), path)

	path, err = ResolvePath(SourceGemini)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".gemini", "settings.json"), path)

	_, err = ResolvePath(Source("cursor"))
	require.ErrorIs(t, err, ErrUnknownSource)
}

func TestReadSourceMissingFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	result, err := ReadSource(SourceClaude)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, SourceClaude, result.Source)
	require.Equal(t, filepath.Join(home, ".claude.json"), result.Path)
}

func TestReadSourceClaude(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeImportFile(t, filepath.Join(home, ".claude.json"), `{
  "numStartups": 12,
  "mcpServers": {
    "web": {
      "command": "uvx",
      "args": ["mcp-server-fetch"],
      "env": {"SEARCH_REGION": "us"}
    },
    "files": {
      "command": "npx",
      "args": ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]
    },
    "remote-api": {
      "url": "https://api.example.com/mcp"
    },
    "broken": "not-an-object",
    "bad.name": {
      "command": "npx"
    }
  }
}`)

	result, err := ReadSource(SourceClaude)
	require.NoError(t, err)
	require.Equal(t, SourceClaude, result.Source)

	require.Len(t, result.Backends, 2)
	require.Equal(t, "files", result.Backends[0].Name)
	require.Equal(t, "web", result.Backends[1].Name)
	require.Equal(t, []string{"mcp-server-fetch"}, result.Backends[1].Config.Args)
	require.Equal(t, map[string]string{"SEARCH_REGION": "us"}, result.Backends[1].Config.Env)

	kinds := issueKinds(result.Issues)
	require.Equal(t, IssueSkipped, kinds["remote-api"])
	require.Equal(t, IssueInvalid, kinds["broken"])
	require.Equal(t, IssueInvalid, kinds["bad.name"])
}

func TestReadSourceGemini(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeImportFile(t, filepath.Join(home, ".gemini", "settings.json"), `{
  "theme": "dark",
  "mcpServers": {
    "context7": {
      "command": "npx",
      "args": ["-y", "@upstash/context7-mcp"],
      "disabled": true
    }
  }
}`)

	result, err := ReadSource(SourceGemini)
	require.NoError(t, err)
	require.Len(t, result.Backends, 1)
	require.Equal(t, "context7", result.Backends[0].Name)
	require.True(t, result.Backends[0].Config.Disabled)
	require.Empty(t, result.Issues)
}

func TestReadSourceCodex(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeImportFile(t, filepath.Join(home, ".codex", "config.toml"), `
model = "o3"

[mcp_servers.files]
command = "npx"
args = ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]

[mcp_servers.files.env]
ROOT = "/srv"

[mcp.servers.files]
command = "stale"

[mcp.servers.legacy-web]
command = "uvx"
args = ["mcp-server-fetch"]
`)

	result, err := ReadSource(SourceCodex)
	require.NoError(t, err)

	require.Len(t, result.Backends, 2)
	require.Equal(t, "files", result.Backends[0].Name)
	require.Equal(t, "npx", result.Backends[0].Config.Command)
	require.Equal(t, map[string]string{"ROOT": "/srv"}, result.Backends[0].Config.Env)
	require.Equal(t, "legacy-web", result.Backends[1].Name)

	require.Len(t, result.Issues, 1)
	require.Equal(t, "files", result.Issues[0].Name)
	require.Equal(t, IssueDuplicate, result.Issues[0].Kind)
}

func TestReadSourceFileCollectsIssuesWithoutAborting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude.json")
	writeImportFile(t, path, `{
  "mcpServers": {
    "ok": {"command": "npx"},
    "no-command": {"args": ["-y"]},
    "bad-args": {"command": "npx", "args": [1, 2]},
    "bad-env": {"command": "npx", "env": {"PORT": 8080}},
    "sse-style": {"transport": "sse", "command": "npx"}
  }
}`)

	result, err := ReadSourceFile(SourceClaude, path)
	require.NoError(t, err)
	require.Len(t, result.Backends, 1)
	require.Equal(t, "ok", result.Backends[0].Name)

	kinds := issueKinds(result.Issues)
	require.Len(t, result.Issues, 4)
	require.Equal(t, IssueInvalid, kinds["no-command"])
	require.Equal(t, IssueInvalid, kinds["bad-args"])
	require.Equal(t, IssueInvalid, kinds["bad-env"])
	require.Equal(t, IssueSkipped, kinds["sse-style"])
}

func TestReadSourceFileMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude.json")
	writeImportFile(t, path, `{"mcpServers": `)

	_, err := ReadSourceFile(SourceClaude, path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse json")
}

func TestReadSourceFileMissingServersSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude.json")
	writeImportFile(t, path, `{"numStartups": 3}`)

	_, err := ReadSourceFile(SourceClaude, path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mcpServers must be an object map")
}
