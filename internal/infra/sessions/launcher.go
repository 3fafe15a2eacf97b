package sessions

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"toolgate/internal/domain"
	"toolgate/internal/infra/envutil"
)

// Launcher opens a protocol transport for one backend. Implementations must
// not perform the handshake; the manager owns session establishment.
type Launcher interface {
	Launch(name string, config domain.BackendConfig) (mcp.Transport, error)
}

// CommandLauncher spawns stdio backends as subprocesses. The subprocess
// lifetime is tied to the session, not to the connect context, so an expired
// connect deadline cannot kill an already established backend. PATH is
// widened through envutil so backends launched from a GUI agent client
// still resolve npx and uvx.
type CommandLauncher struct{}

func (CommandLauncher) Launch(name string, config domain.BackendConfig) (mcp.Transport, error) {
	if strings.TrimSpace(config.Command) == "" {
		return nil, domain.E(domain.CodeValidation, "sessions.launch",
			fmt.Sprintf("backend %q: command is required", name), nil)
	}

	cmd := exec.Command(config.Command, config.Args...)
	cmd.Env = envutil.PatchPATH(append(os.Environ(), formatEnv(config.Env)...))

	return &mcp.CommandTransport{Command: cmd}, nil
}

func formatEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}
