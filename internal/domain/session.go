package domain

// BackendConfig describes how to reach one backend server: the command
// line and environment of its stdio subprocess. Extra fields in on-disk
// registrations are permitted and ignored.
type BackendConfig struct {
	Command  string            `json:"command"`
	Args     []string          `json:"args,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Disabled bool              `json:"disabled,omitempty"`
}

// BackendStatus is the reportable state of one backend registration. The
// live protocol session handle is owned exclusively by the session manager
// and never leaves it.
type BackendStatus struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	ToolCount int    `json:"toolCount"`
	LastError string `json:"lastError,omitempty"`
}

// Registration pairs a backend name with its transport config.
type Registration struct {
	Name   string        `json:"name"`
	Config BackendConfig `json:"config"`
}
