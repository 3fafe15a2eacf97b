// Package envutil widens PATH for backend subprocesses. Agent clients on
// macOS launch the gateway outside a login shell, so the inherited PATH
// misses the node and python tool locations most backends are installed
// under. Patching happens once per shell and is cached.
package envutil

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	skipPatchVar = "TOOLGATE_SKIP_PATH_PATCH"
	termVar      = "TERM"
	shellVar     = "SHELL"
	pathVar      = "PATH"
)

const loginShellTimeout = 2 * time.Second

type loginPathResult struct {
	path string
	err  error
}

var loginPathCache sync.Map

// PatchPATH merges the login shell's PATH into env on macOS when the
// process was not started from a terminal. TERM present or the skip
// variable set leaves env untouched, as does any other platform.
func PatchPATH(env []string) []string {
	if runtime.GOOS != "darwin" {
		return env
	}
	if strings.TrimSpace(envValue(env, skipPatchVar)) != "" {
		return env
	}
	if strings.TrimSpace(envValue(env, termVar)) != "" {
		return env
	}

	shell := strings.TrimSpace(envValue(env, shellVar))
	if shell == "" {
		shell = "/bin/zsh"
	}
	loginPath, err := loginPATH(shell)
	if err != nil || strings.TrimSpace(loginPath) == "" {
		return env
	}

	current := envValue(env, pathVar)
	merged := mergePaths(loginPath, current)
	if merged == "" || merged == current {
		return env
	}
	return replaceEnv(env, pathVar, merged)
}

// envValue returns the last value of key in env, matching the precedence
// exec gives duplicate entries.
func envValue(env []string, key string) string {
	prefix := key + "="
	value := ""
	for _, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			value = strings.TrimPrefix(entry, prefix)
		}
	}
	return value
}

// replaceEnv drops every entry for key and appends a single new one.
func replaceEnv(env []string, key, value string) []string {
	prefix := key + "="
	out := make([]string, 0, len(env)+1)
	for _, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			continue
		}
		out = append(out, entry)
	}
	return append(out, prefix+value)
}

func loginPATH(shell string) (string, error) {
	if cached, ok := loginPathCache.Load(shell); ok {
		result := cached.(loginPathResult)
		return result.path, result.err
	}

	ctx, cancel := context.WithTimeout(context.Background(), loginShellTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, shell, "-lc", "echo $PATH")
	cmd.Env = append(os.Environ(), "LANG=C", "LC_ALL=C")
	output, err := cmd.Output()

	result := loginPathResult{err: err}
	if err == nil {
		result.path = strings.TrimSpace(string(output))
	}
	loginPathCache.Store(shell, result)
	return result.path, result.err
}

// mergePaths joins two PATH strings, keeping first occurrence order and
// dropping duplicates and empty segments.
func mergePaths(primary, fallback string) string {
	separator := string(os.PathListSeparator)
	seen := make(map[string]struct{})
	merged := make([]string, 0, 8)

	for _, path := range []string{primary, fallback} {
		for _, entry := range strings.Split(path, separator) {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			if _, dup := seen[entry]; dup {
				continue
			}
			seen[entry] = struct{}{}
			merged = append(merged, entry)
		}
	}
	return strings.Join(merged, separator)
}
